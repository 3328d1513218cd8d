package tools

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/expr-lang/expr"
	"github.com/google/uuid"
)

var (
	// Only digits, arithmetic operators, parens and whitespace reach the
	// evaluator; everything else is stripped up front.
	mathSanitizer = regexp.MustCompile(`[^0-9+\-*/.()\s]`)
	emailPattern  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// SystemTools returns the built-in tool set.
func SystemTools() []Tool {
	return []Tool{
		{
			Name:        "getCurrentTime",
			Description: "Get the current time in ISO format",
			Parameters:  map[string]any{},
			Execute: func(_ map[string]any) (any, error) {
				return map[string]any{"time": time.Now().UTC().Format(time.RFC3339)}, nil
			},
		},
		{
			Name:        "formatDate",
			Description: "Format a date string",
			Parameters: map[string]any{
				"date": map[string]any{
					"type":        "string",
					"description": "The date string to format",
				},
				"format": map[string]any{
					"type":        "string",
					"enum":        []string{"short", "medium", "long", "full"},
					"description": "The format to use",
				},
			},
			Execute: executeFormatDate,
		},
		{
			Name:        "calculateMath",
			Description: "Safely evaluate a mathematical expression",
			Parameters: map[string]any{
				"expression": map[string]any{
					"type":        "string",
					"description": "The mathematical expression to evaluate",
				},
			},
			Execute: executeCalculate,
		},
		{
			Name:        "generateUUID",
			Description: "Generate a UUID v4",
			Parameters:  map[string]any{},
			Execute: func(_ map[string]any) (any, error) {
				return map[string]any{"uuid": uuid.NewString()}, nil
			},
		},
		{
			Name:        "validateEmail",
			Description: "Validate an email address",
			Parameters: map[string]any{
				"email": map[string]any{
					"type":        "string",
					"description": "The email address to validate",
				},
			},
			Execute: func(args map[string]any) (any, error) {
				email, _ := args["email"].(string)
				return map[string]any{
					"isValid": emailPattern.MatchString(email),
					"email":   email,
				}, nil
			},
		},
	}
}

// RegisterSystemTools registers the built-in tool set on a registry.
func RegisterSystemTools(r *Registry) error {
	for _, t := range SystemTools() {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func executeFormatDate(args map[string]any) (any, error) {
	dateStr, _ := args["date"].(string)
	format, _ := args["format"].(string)
	if format == "" {
		format = "long"
	}

	var layout string
	switch format {
	case "short":
		layout = "1/2/06"
	case "medium":
		layout = "Jan 2, 2006"
	case "long":
		layout = "January 2, 2006"
	case "full":
		layout = "Monday, January 2, 2006"
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}

	parsed, err := parseDate(dateStr)
	if err != nil {
		return nil, err
	}
	return map[string]any{"formatted": parsed.Format(layout)}, nil
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// executeCalculate evaluates arithmetic through the expression engine with
// an empty environment: no identifiers, no calls, no dynamic code.
func executeCalculate(args map[string]any) (any, error) {
	expression, _ := args["expression"].(string)
	sanitized := mathSanitizer.ReplaceAllString(expression, "")
	if sanitized == "" {
		return nil, errors.New("invalid mathematical expression")
	}

	program, err := expr.Compile(sanitized)
	if err != nil {
		return nil, errors.New("invalid mathematical expression")
	}
	result, err := expr.Run(program, nil)
	if err != nil {
		return nil, errors.New("invalid mathematical expression")
	}
	return map[string]any{"result": result}, nil
}
