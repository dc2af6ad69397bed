package command

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Command
	}{
		{"mode", "MODE:HR_SPO2", Command{Kind: Mode, Arg: "HR_SPO2", Raw: "MODE:HR_SPO2"}},
		{"unknown mode name kept", "MODE:WARP", Command{Kind: Mode, Arg: "WARP", Raw: "MODE:WARP"}},
		{"mode without colon", "MODE", Command{Kind: Malformed, Raw: "MODE"}},
		{"label", "LABEL:rest", Command{Kind: Label, Arg: "rest", Raw: "LABEL:rest"}},
		{"label max length", "LABEL:abcdefghijklmno", Command{Kind: Label, Arg: "abcdefghijklmno", Raw: "LABEL:abcdefghijklmno"}},
		{"label too long", "LABEL:abcdefghijklmnop", Command{Kind: Malformed, Raw: "LABEL:abcdefghijklmnop"}},
		{"empty label", "LABEL:", Command{Kind: Malformed, Raw: "LABEL:"}},
		{"start with distance", "START:IR:25", Command{Kind: Start, Arg: "IR", DistanceMM: 25, Raw: "START:IR:25"}},
		{"start without distance", "START:RED", Command{Kind: Start, Arg: "RED", Raw: "START:RED"}},
		{"start bad distance", "START:RED:far", Command{Kind: Start, Arg: "RED", Raw: "START:RED:far"}},
		{"start id too long", "START:abcdefgh:5", Command{Kind: Malformed, Raw: "START:abcdefgh:5"}},
		{"start without id", "START", Command{Kind: Malformed, Raw: "START"}},
		{"stop", "STOP", Command{Kind: Stop, Raw: "STOP"}},
		{"reset", "RESET", Command{Kind: Reset, Raw: "RESET"}},
		{"status", "STATUS", Command{Kind: Status, Raw: "STATUS"}},
		{"status with argument", "STATUS:now", Command{Kind: Unknown, Raw: "STATUS:now"}},
		{"case sensitive", "mode:IDLE", Command{Kind: Unknown, Raw: "mode:IDLE"}},
		{"empty", "", Command{Kind: Unknown}},
		{"trailing newline", "STOP\r\n", Command{Kind: Stop, Raw: "STOP"}},
		{"trailing nul", "RESET\x00", Command{Kind: Reset, Raw: "RESET"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse([]byte(tt.in)))
		})
	}
}

func TestParse_Oversized(t *testing.T) {
	c := Parse([]byte("MODE:" + strings.Repeat("X", MaxLength)))
	assert.Equal(t, Malformed, c.Kind)
	assert.True(t, c.Ignored())

	c = Parse([]byte("MODE:" + strings.Repeat("X", MaxLength-5)))
	assert.Equal(t, Mode, c.Kind)
	assert.False(t, c.Ignored())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "START", Start.String())
	assert.Equal(t, "UNKNOWN", Kind(99).String())
}
