// github.com/tve/radios contains drivers for radio transceivers attached to SPI buses and
// gpio pins. The drivers only talk to the hardware through small SPI and GPIO interfaces so
// they can be used with periph.io, embd, or a test harness. Each driver is in its own
// directory and is stand-alone. Simple commands to test the radios can be found in the cmd
// directory tree.
package radios
