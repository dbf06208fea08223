package ax25

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		f    Frame
		want FrameKind
	}{
		{"i-frame", Frame{Control: Control{Kind: KindI}}, FrameI},
		{"rr", Frame{Control: Control{Kind: KindS, SType: SRR}}, FrameRR},
		{"rej", Frame{Control: Control{Kind: KindS, SType: SREJ}}, FrameREJ},
		{"sabme", Frame{Control: Control{Kind: KindU, UType: USABME}}, FrameSABM},
		{"ui", Frame{Control: Control{Kind: KindU, UType: UUI}}, FrameUI},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Classify(c.f))
		})
	}
}

func TestFrameKindString(t *testing.T) {
	assert.Equal(t, "SABM(E)", FrameSABM.String())
	assert.Equal(t, "?", FrameKind(99).String())
}
