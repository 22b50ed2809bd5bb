package radios

import "testing"

// The sx1280 driver asks its transport for 10MHz and SPI mode 0 before the first
// transfer; the embd shim has to accept that.
func TestSpiShimSpeed(t *testing.T) {
	s := NewSPI()
	if err := s.Speed(10 * 1000 * 1000); err != nil {
		t.Fatalf("10MHz refused: %v", err)
	}
	if err := s.Speed(4 * 1000 * 1000); err != nil {
		t.Fatalf("4MHz refused: %v", err)
	}
	if err := s.Speed(20 * 1000 * 1000); err == nil {
		t.Fatalf("20MHz accepted, bus tops out at 10MHz")
	}
	if err := s.Configure(SPIMode0, 8); err != nil {
		t.Fatalf("mode 0 refused: %v", err)
	}
	if err := s.Configure(SPIMode0, 16); err == nil {
		t.Fatalf("16-bit words accepted")
	}
}
