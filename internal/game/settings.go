package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"snakeiaserver/internal/engine"

	"github.com/go-playground/validator/v10"
)

// CustomSpeed is the speed value selecting customSpeed instead.
const CustomSpeed = "custom"

var validate = validator.New()

// CreateRequest is the raw body of a create message. Numeric fields are
// accepted as numbers or numeric strings, flags as booleans, 0/1 or
// "true"/"false". Typing is left to ValidateSettings so that a bad field is
// answered with INVALID_SETTINGS.
type CreateRequest struct {
	HeightGrid    any `json:"heightGrid"`
	WidthGrid     any `json:"widthGrid"`
	BorderWalls   any `json:"borderWalls"`
	GenerateWalls any `json:"generateWalls"`
	Private       any `json:"private"`
	Speed         any `json:"speed"`
	CustomSpeed   any `json:"customSpeed"`
	EnableAI      any `json:"enableAI"`
	LevelAI       any `json:"levelAI"`

	malformed bool
}

// UnmarshalJSON never fails: a body that is not an object is remembered and
// rejected by ValidateSettings.
func (r *CreateRequest) UnmarshalJSON(b []byte) error {
	type plain CreateRequest
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		*r = CreateRequest{malformed: true}
		return nil
	}
	*r = CreateRequest(p)
	return nil
}

// Settings are the normalized room settings.
type Settings struct {
	Width         int
	Height        int
	BorderWalls   bool
	GenerateWalls bool
	Private       bool
	Speed         int
	EnableAI      bool
	AILevel       engine.AILevel
}

// ValidateSettings evaluates every field before deciding, so the returned
// Settings are fully normalized even when some field failed.
func ValidateSettings(req CreateRequest, cfg Config) (Settings, error) {
	s := Settings{Width: 20, Height: 20, Speed: 8}
	if req.malformed {
		return s, &CodedError{Code: CodeInvalidSettings, Err: errors.New("settings: not an object")}
	}
	var errs []error

	gridRule := fmt.Sprintf("min=%d,max=%d", cfg.MinGridSize, cfg.MaxGridSize)
	speedRule := fmt.Sprintf("min=%d,max=%d", cfg.MinSpeed, cfg.MaxSpeed)

	if v, err := intField("heightGrid", req.HeightGrid, gridRule); err != nil {
		errs = append(errs, err)
	} else {
		s.Height = v
	}
	if v, err := intField("widthGrid", req.WidthGrid, gridRule); err != nil {
		errs = append(errs, err)
	} else {
		s.Width = v
	}

	var err error
	if s.BorderWalls, err = boolField("borderWalls", req.BorderWalls); err != nil {
		errs = append(errs, err)
	}
	if s.GenerateWalls, err = boolField("generateWalls", req.GenerateWalls); err != nil {
		errs = append(errs, err)
	}
	if s.Private, err = boolField("private", req.Private); err != nil {
		errs = append(errs, err)
	}

	if str, ok := req.Speed.(string); ok && strings.EqualFold(str, CustomSpeed) {
		if v, err := intField("customSpeed", req.CustomSpeed, speedRule); err != nil {
			errs = append(errs, err)
		} else {
			s.Speed = v
		}
	} else if v, err := intField("speed", req.Speed, speedRule); err != nil {
		errs = append(errs, err)
	} else {
		s.Speed = v
	}

	if req.EnableAI != nil {
		if s.EnableAI, err = boolField("enableAI", req.EnableAI); err != nil {
			errs = append(errs, err)
		}
	}
	if s.EnableAI {
		s.AILevel = engine.AILevelDefault
		switch level := req.LevelAI.(type) {
		case nil:
		case string:
			if level == "" {
				break
			}
			level = strings.ToUpper(level)
			if err := validate.Var(level, "oneof=RANDOM LOW DEFAULT HIGH ULTRA"); err != nil {
				errs = append(errs, fmt.Errorf("levelAI: %w", err))
			} else {
				s.AILevel = engine.AILevel(level)
			}
		default:
			errs = append(errs, errors.New("levelAI: not a string"))
		}
	}

	if len(errs) > 0 {
		return s, &CodedError{Code: CodeInvalidSettings, Err: errors.Join(errs...)}
	}
	return s, nil
}

func intField(name string, raw any, rule string) (int, error) {
	v, ok := toInt(raw)
	if !ok {
		return 0, fmt.Errorf("%s: not an integer", name)
	}
	if err := validate.Var(v, rule); err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	return v, nil
}

func boolField(name string, raw any) (bool, error) {
	if raw == nil {
		return false, fmt.Errorf("%s: required", name)
	}
	v, ok := toBool(raw)
	if !ok {
		return false, fmt.Errorf("%s: not a boolean", name)
	}
	return v, nil
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case *bool:
		if v == nil {
			return false, false
		}
		return *v, true
	case float64:
		return v != 0, !math.IsNaN(v)
	case int:
		return v != 0, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	return false, false
}

func toInt(raw any) (int, bool) {
	switch v := raw.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) || v != math.Trunc(v) {
			return 0, false
		}
		return int(v), true
	case json.Number:
		i, err := v.Int64()
		return int(i), err == nil
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(v))
		return i, err == nil
	}
	return 0, false
}
