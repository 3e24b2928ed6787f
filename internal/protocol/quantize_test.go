package protocol

import "testing"

func TestPositionBoundaries(t *testing.T) {
	if code := QuantizePosition(WorldMin); code != 0 {
		t.Fatalf("WorldMin should encode to 0, got %d", code)
	}
	if back := DequantizePosition(0); back != WorldMin {
		t.Fatalf("code 0 should decode to WorldMin, got %v", back)
	}

	maxCode := uint32(positionMaxCode)
	if code := QuantizePosition(WorldMax); code != maxCode {
		t.Fatalf("WorldMax should encode to %d, got %d", maxCode, code)
	}
	back := DequantizePosition(maxCode)
	if absf(back-WorldMax) > 0.001 {
		t.Fatalf("max code should decode within a quantum of WorldMax, got %v", back)
	}
}

func TestPositionClampsOutOfRange(t *testing.T) {
	if code := QuantizePosition(WorldMax + 1000); code != uint32(positionMaxCode) {
		t.Fatalf("above-range value should clamp to max code, got %d", code)
	}
	if code := QuantizePosition(WorldMin - 1000); code != 0 {
		t.Fatalf("below-range value should clamp to 0, got %d", code)
	}
}

func TestPositionRoundTripWithinQuantum(t *testing.T) {
	quantum := (WorldMax - WorldMin) / positionMaxCode
	samples := []float64{-1024, -500.25, -0.001, 0, 0.001, 333.333, 1023.999, 1024}
	for _, v := range samples {
		code := QuantizePosition(v)
		back := DequantizePosition(code)
		if absf(back-v) > quantum+1e-9 {
			t.Fatalf("value %v round-tripped to %v, exceeds one quantum (%v)", v, back, quantum)
		}
	}
}

func TestVelocityBoundaries(t *testing.T) {
	if code := QuantizeVelocity(-MaxVelocity); code != 0 {
		t.Fatalf("-MaxVelocity should encode to 0, got %d", code)
	}
	if code := QuantizeVelocity(MaxVelocity); code != uint32(velocityMaxCode) {
		t.Fatalf("+MaxVelocity should encode to %d, got %d", velocityMaxCode, code)
	}
	if code := QuantizeVelocity(0); code != (1<<(VelocityBits-1))-1 {
		t.Fatalf("zero velocity should encode to mid-code %d, got %d", (1<<(VelocityBits-1))-1, code)
	}
}

func TestVelocityIdempotentAfterRoundTrip(t *testing.T) {
	samples := []float64{-256, -100.5, -0.1, 0, 0.1, 100.5, 256}
	for _, v := range samples {
		code1 := QuantizeVelocity(v)
		back := DequantizeVelocity(code1)
		code2 := QuantizeVelocity(back)
		if code1 != code2 {
			t.Fatalf("value %v: not idempotent after one round trip (%d != %d)", v, code1, code2)
		}
	}
}
