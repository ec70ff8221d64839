package si4707

import (
	"testing"
)

func TestConfidenceLayout(t *testing.T) {
	levels := [8]uint8{3, 2, 1, 0, 0, 1, 2, 3}
	got := EncodeConfidence(levels)
	if got != [2]byte{0xE4, 0x1B} {
		t.Fatalf("encode = % X", got)
	}
	if back := DecodeConfidence(got[:]); back != levels {
		t.Fatalf("decode = %v", back)
	}
}

func TestConfidenceRoundTripAll(t *testing.T) {
	for v := 0; v < 1<<16; v++ {
		var c [8]uint8
		for i := range c {
			c[i] = uint8(v>>(2*i)) & 3
		}
		enc := EncodeConfidence(c)
		if dec := DecodeConfidence(enc[:]); dec != c {
			t.Fatalf("round trip %v -> % X -> %v", c, enc, dec)
		}
	}
}

func TestFrequencyCode(t *testing.T) {
	want := []uint16{64960, 64970, 64980, 64990, 65000, 65010, 65020}
	ch := Channels()
	if len(ch) != len(want) {
		t.Fatalf("channels = %v", ch)
	}
	for i, f := range ch {
		if got := FrequencyCode(f); got != want[i] {
			t.Errorf("FrequencyCode(%.3f) = %d, want %d", f, got, want[i])
		}
	}
	if got := FrequencyCode(162.45); got != 64980 {
		t.Fatalf("162.45 = %d", got)
	}
}

func TestPackFlags(t *testing.T) {
	b := packFlags(bit(true, pupCTSIEN), bit(false, pupGPO2OEN), bit(true, pupXOSCEN))
	if b != 0x90 {
		t.Fatalf("packFlags = 0x%02X", b)
	}
}

func TestDecodeSAMEStatus(t *testing.T) {
	reg := EncodeConfidence([8]uint8{3, 3, 3, 3, 2, 2, 2, 2})
	b := []byte{0x80, sameHDRRDY | sameSOMDET, 4, 49, reg[0], reg[1], 'Z', 'C', 'Z', 'C', '-', 'W', 'X', 'R'}
	st := decodeSAMEStatus(b)
	if !st.HDRRDY || !st.SOMDET || st.EOMDET || st.PREDET {
		t.Fatalf("flags = %s", st.flags())
	}
	if st.State != 4 || st.MsgLen != 49 || string(st.Message[:]) != "ZCZC-WXR" {
		t.Fatalf("status = %+v", st)
	}
	if st.Confidence[0] != 3 || st.Confidence[7] != 2 {
		t.Fatalf("confidence = %v", st.Confidence)
	}
}

func TestStatusString(t *testing.T) {
	if s := (StatusCTS | StatusSTCInt).String(); s != "CTS|STCINT" {
		t.Fatalf("String = %q", s)
	}
	if s := Status(0).String(); s != "0" {
		t.Fatalf("String = %q", s)
	}
	if !(StatusSAMEInt | StatusCTS).Pending() || StatusCTS.Pending() {
		t.Fatal("Pending")
	}
}
