package factor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRead(t *testing.T) {
	tests := []struct {
		name string
		raw  Raw
		want Value
	}{
		{"numeric rounded", Raw{DataTypeNumeric, 2, "1,250.456"}, Num(1250.46)},
		{"numeric zero decimals", Raw{DataTypeNumeric, 0, "99.5"}, Num(100)},
		{"numeric unparseable", Raw{DataTypeNumeric, 2, "n/a"}, Num(0)},
		{"numeric empty", Raw{DataTypeNumeric, 2, ""}, Num(0)},
		{"numeric infinity", Raw{DataTypeNumeric, 2, "Inf"}, Num(0)},
		{"numeric too large to round", Raw{DataTypeNumeric, 10, "1e305"}, Num(1e305)},
		{"integer truncates", Raw{DataTypeInteger, 0, "12.9"}, Num(12)},
		{"text kept", Raw{DataTypeText, 0, " corner plot "}, Str(" corner plot ")},
		{"dropdown kept", Raw{DataTypeDropdown, 0, "E"}, Str("E")},
		{"iso date", Raw{DataTypeDate, 0, "2024-03-01"}, Str("2024-03-01")},
		{"day first date", Raw{DataTypeDate, 0, "01/03/2024"}, Str("2024-03-01")},
		{"rfc3339 date", Raw{DataTypeDate, 0, "2024-03-01T10:00:00Z"}, Str("2024-03-01")},
		{"bad date", Raw{DataTypeDate, 0, "soon"}, Str("soon")},
		{"unknown type", Raw{DataType("BLOB"), 0, "x"}, Str("x")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Read(tc.raw))
		})
	}
}

func TestValueAccessors(t *testing.T) {
	assert.Equal(t, 12.5, Num(12.5).Any())
	assert.Equal(t, "E", Str("E").Any())
	assert.Equal(t, 0.0, Str("E").Float())
	assert.Equal(t, "12.5", Num(12.5).String())
	assert.True(t, DataTypeInteger.IsNumeric())
	assert.False(t, DataTypeDate.IsNumeric())
	assert.True(t, DataTypeDropdown.Valid())
	assert.False(t, DataType("").Valid())
}
