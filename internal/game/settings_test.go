package game

import (
	"encoding/json"
	"testing"

	"snakeiaserver/internal/engine"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeRequest(t *testing.T, raw string) CreateRequest {
	t.Helper()
	var req CreateRequest
	require.NoError(t, json.Unmarshal([]byte(raw), &req))
	return req
}

func TestValidateSettings_Valid(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":8}`)

	s, err := ValidateSettings(req, DefaultConfig())

	require.NoError(t, err)
	assert.Equal(t, Settings{Width: 20, Height: 20, BorderWalls: true, Speed: 8}, s)
}

func TestValidateSettings_NumericStrings(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":"15","widthGrid":"30","borderWalls":false,"generateWalls":true,"private":true,"speed":"4"}`)

	s, err := ValidateSettings(req, DefaultConfig())

	require.NoError(t, err)
	assert.Equal(t, 15, s.Height)
	assert.Equal(t, 30, s.Width)
	assert.Equal(t, 4, s.Speed)
	assert.True(t, s.Private)
	assert.True(t, s.GenerateWalls)
}

func TestValidateSettings_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"width below minimum", `{"heightGrid":20,"widthGrid":2,"borderWalls":true,"generateWalls":false,"private":false,"speed":8}`, "widthGrid"},
		{"height above maximum", `{"heightGrid":500,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":8}`, "heightGrid"},
		{"width not a number", `{"heightGrid":20,"widthGrid":"wide","borderWalls":true,"generateWalls":false,"private":false,"speed":8}`, "widthGrid"},
		{"missing border flag", `{"heightGrid":20,"widthGrid":20,"generateWalls":false,"private":false,"speed":8}`, "borderWalls"},
		{"missing private flag", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"speed":8}`, "private"},
		{"speed out of range", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":0}`, "speed"},
		{"custom speed out of range", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":"custom","customSpeed":1000}`, "customSpeed"},
		{"unknown AI level", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":8,"enableAI":true,"levelAI":"GODLIKE"}`, "levelAI"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSettings(decodeRequest(t, tt.body), DefaultConfig())

			require.Error(t, err)
			code, ok := CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, CodeInvalidSettings, code)
			assert.ErrorContains(t, err, tt.field)
		})
	}
}

func TestValidateSettings_EvaluatesEveryField(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":12,"widthGrid":2,"borderWalls":true,"generateWalls":true,"private":true,"speed":999}`)

	s, err := ValidateSettings(req, DefaultConfig())

	require.Error(t, err)
	assert.ErrorContains(t, err, "widthGrid")
	assert.ErrorContains(t, err, "speed")
	assert.Equal(t, 12, s.Height)
	assert.True(t, s.BorderWalls)
	assert.True(t, s.GenerateWalls)
	assert.True(t, s.Private)
}

func TestValidateSettings_CustomSpeed(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":20,"widthGrid":20,"borderWalls":false,"generateWalls":false,"private":false,"speed":"custom","customSpeed":13}`)

	s, err := ValidateSettings(req, DefaultConfig())

	require.NoError(t, err)
	assert.Equal(t, 13, s.Speed)
}

func TestValidateSettings_AILevel(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":20,"widthGrid":20,"borderWalls":false,"generateWalls":false,"private":false,"speed":8,"enableAI":true}`)
	s, err := ValidateSettings(req, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, engine.AILevelDefault, s.AILevel)

	req.LevelAI = "high"
	s, err = ValidateSettings(req, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, engine.AILevelHigh, s.AILevel)
}

func TestValidateSettings_LooseFlags(t *testing.T) {
	req := decodeRequest(t, `{"heightGrid":20,"widthGrid":20,"borderWalls":1,"generateWalls":"false","private":0,"speed":8,"enableAI":"true","levelAI":"low"}`)

	s, err := ValidateSettings(req, DefaultConfig())

	require.NoError(t, err)
	assert.True(t, s.BorderWalls)
	assert.False(t, s.GenerateWalls)
	assert.False(t, s.Private)
	assert.True(t, s.EnableAI)
	assert.Equal(t, engine.AILevelLow, s.AILevel)
}

func TestValidateSettings_WrongTypes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"object flag", `{"heightGrid":20,"widthGrid":20,"borderWalls":{},"generateWalls":false,"private":false,"speed":8}`, "borderWalls"},
		{"word flag", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":"maybe","private":false,"speed":8}`, "generateWalls"},
		{"list for enableAI", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":8,"enableAI":[true]}`, "enableAI"},
		{"numeric AI level", `{"heightGrid":20,"widthGrid":20,"borderWalls":true,"generateWalls":false,"private":false,"speed":8,"enableAI":true,"levelAI":3}`, "levelAI"},
		{"body is not an object", `[20,20]`, "not an object"},
		{"body is a string", `"big room"`, "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSettings(decodeRequest(t, tt.body), DefaultConfig())

			code, ok := CodeOf(err)
			require.True(t, ok)
			assert.Equal(t, CodeInvalidSettings, code)
			assert.ErrorContains(t, err, tt.field)
		})
	}
}
