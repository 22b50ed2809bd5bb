// Copyright (c) 2016 by Thorsten von Eicken, see LICENSE file for details

package main

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// mq is a handle onto a MQTT broker connection. It hides the paho client behind a
// simple publish/subscribe pair and de-duplicates messages that come back to us via
// the broker after we published them ourselves.
type mq struct {
	conn    mqtt.Client          // broker connection
	dedupMu sync.Mutex           // protects dedup
	dedup   map[uint64]time.Time // de-dup of messages we sent
}

// newMQ connects to a broker and returns a new mq object. The connection is persistent,
// i.e., re-establishes itself if there is a disconnect.
func newMQ(host string, debug LogPrintf) (*mq, error) {
	hostname, _ := os.Hostname()
	id := "mqttradio-" + hostname
	if debug != nil {
		debug("Configuring MQTT with client id %s on %s", id, host)
	}
	mqtt.ERROR = log.New(os.Stderr, "", 0)
	opts := mqtt.NewClientOptions().AddBroker("tcp://" + host)
	opts.ClientID = id
	opts.AutoReconnect = true

	mqConn := mqtt.NewClient(opts)
	if token := mqConn.Connect(); !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		if token.Error() != nil {
			return nil, token.Error()
		}
		return nil, fmt.Errorf("timeout connecting to %s", host)
	}
	mq := &mq{conn: mqConn, dedup: make(map[uint64]time.Time)}
	go mq.gc()

	log.Printf("MQTT connected")
	return mq, nil
}

// gc is an endless loop that removes message de-duplication IDs that are older than a
// few minutes. These are evidently ones for which we don't have a subscription.
func (mq *mq) gc() {
	for {
		time.Sleep(time.Minute)
		mq.dedupMu.Lock()
		tooOld := time.Now().Add(-10 * time.Minute)
		for h, t := range mq.dedup {
			if t.Before(tooOld) {
				delete(mq.dedup, h)
			}
		}
		mq.dedupMu.Unlock()
	}
}

// Publish JSON-encodes payload and publishes it.
func (mq *mq) Publish(topic string, payload interface{}) {
	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		log.Printf("cannot json encode for %s: %s", topic, err)
		return
	}
	mq.conn.Publish(topic, 1, false, jsonPayload)
	mq.dedupMu.Lock()
	mq.dedup[hashMessage(topic, string(jsonPayload))] = time.Now()
	mq.dedupMu.Unlock()
}

// Subscribe subscribes to an MQTT topic and calls handler with each raw payload,
// skipping messages this gateway published itself.
func (mq *mq) Subscribe(topic string, handler func([]byte)) error {
	h := func(c mqtt.Client, m mqtt.Message) {
		hash := hashMessage(topic, string(m.Payload()))
		mq.dedupMu.Lock()
		_, dup := mq.dedup[hash]
		delete(mq.dedup, hash)
		mq.dedupMu.Unlock()
		if dup {
			return
		}
		handler(m.Payload())
	}
	if token := mq.conn.Subscribe(topic, 1, h); !token.WaitTimeout(2 * time.Second) {
		return token.Error()
	}
	return nil
}

func hashMessage(s ...string) uint64 {
	h := fnv.New64()
	for i, str := range s {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(str))
	}
	return h.Sum64()
}
