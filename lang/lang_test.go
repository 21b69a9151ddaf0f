package lang

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Lang
	}{
		{"en", English},
		{"EN", English},
		{"English", English},
		{"zh-cn", ChineseSimplified},
		{"chinesesimplified", ChineseSimplified},
		{" ja ", Japanese},
		{"auto", Auto},
		{"mn-mo", MongolianTraditional},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Parse("klingon")
	assert.Error(t, err)
}

func TestAll_CoversEnumeration(t *testing.T) {
	all := All()
	assert.Len(t, all, int(numLangs))
	assert.Equal(t, Auto, all[0])
	assert.Equal(t, Ukrainian, all[len(all)-1])
	seen := map[string]bool{}
	for _, l := range all {
		assert.True(t, l.Valid())
		assert.NotEmpty(t, l.Code())
		assert.False(t, seen[l.Code()], "duplicate code %s", l.Code())
		seen[l.Code()] = true
	}
}

func TestInvalidLang(t *testing.T) {
	l := Lang(999)
	assert.False(t, l.Valid())
	assert.Equal(t, "Lang(999)", l.String())
	assert.Empty(t, l.Code())
	_, err := l.MarshalText()
	assert.Error(t, err)
}

func TestJSONUsesCodes(t *testing.T) {
	type payload struct {
		From Lang `json:"from"`
		To   Lang `json:"to"`
	}
	b, err := json.Marshal(payload{From: English, To: ChineseTraditional})
	require.NoError(t, err)
	assert.JSONEq(t, `{"from":"en","to":"zh-tw"}`, string(b))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"from":"Japanese","to":"ko"}`), &p))
	assert.Equal(t, Japanese, p.From)
	assert.Equal(t, Korean, p.To)
}

func TestProperty_ParseRecoversEveryLang(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		l := rapid.SampledFrom(All()).Draw(rt, "lang")
		byCode, err := Parse(l.Code())
		if err != nil || byCode != l {
			rt.Fatalf("code %q parsed to %v, %v", l.Code(), byCode, err)
		}
		byName, err := Parse(l.String())
		if err != nil || byName != l {
			rt.Fatalf("name %q parsed to %v, %v", l.String(), byName, err)
		}
	})
}
