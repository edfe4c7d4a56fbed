package calculator

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	toolshared "github.com/nid-27/regnex/llm/tools/shared"
)

// divisionPlaces is the precision kept by division
const divisionPlaces = 10

// Calculator evaluates arithmetic on prices and volumes without float
// rounding errors
type Calculator struct{}

// NewCalculator creates a new calculator tool
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Name returns the tool name
func (c *Calculator) Name() string {
	return "calculator"
}

// Description returns the tool description
func (c *Calculator) Description() string {
	return "Evaluates an arithmetic expression exactly, e.g. percentage changes between two closing prices. Supports +, -, *, / and parentheses"
}

// Schema returns the JSON schema for input validation
func (c *Calculator) Schema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"expression": map[string]any{
				"type":        "string",
				"minLength":   1,
				"description": "Expression to evaluate (e.g. '(11.40 - 10.20) / 10.20 * 100')",
			},
		},
		"required": []string{"expression"},
	}
}

// Execute performs the calculation
func (c *Calculator) Execute(ctx context.Context, input *toolshared.ToolInput) (*toolshared.ToolResult, error) {
	expression := toolshared.StringArg(input.Data, "expression")

	if !c.isValidExpression(expression) {
		return toolshared.Failure("expression contains invalid characters. Only numbers, +, -, *, /, (, ), and spaces are allowed"), nil
	}

	result, err := c.evaluateExpression(expression)
	if err != nil {
		return toolshared.Failure("calculation failed: %v", err), nil
	}

	return &toolshared.ToolResult{
		Success: true,
		Data: map[string]any{
			"expression": expression,
			"result":     result.String(),
		},
	}, nil
}

func (c *Calculator) isValidExpression(expr string) bool {
	for _, char := range expr {
		if !(unicode.IsDigit(char) || strings.ContainsRune("+-*/(). \t", char)) {
			return false
		}
	}
	return true
}

func (c *Calculator) evaluateExpression(expr string) (decimal.Decimal, error) {
	p := &parser{input: strings.Join(strings.Fields(expr), "")}
	if p.input == "" {
		return decimal.Zero, fmt.Errorf("empty expression")
	}
	v, err := p.parseExpression()
	if err != nil {
		return decimal.Zero, err
	}
	if p.pos < len(p.input) {
		return decimal.Zero, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return v, nil
}

// parser is a recursive descent evaluator over a whitespace-free expression
type parser struct {
	input string
	pos   int
}

func (p *parser) peek() byte {
	if p.pos < len(p.input) {
		return p.input[p.pos]
	}
	return 0
}

// expression := term (('+' | '-') term)*
func (p *parser) parseExpression() (decimal.Decimal, error) {
	left, err := p.parseTerm()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op := p.peek()
		if op != '+' && op != '-' {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return decimal.Zero, err
		}
		if op == '+' {
			left = left.Add(right)
		} else {
			left = left.Sub(right)
		}
	}
}

// term := factor (('*' | '/') factor)*
func (p *parser) parseTerm() (decimal.Decimal, error) {
	left, err := p.parseFactor()
	if err != nil {
		return decimal.Zero, err
	}
	for {
		op := p.peek()
		if op != '*' && op != '/' {
			return left, nil
		}
		p.pos++
		right, err := p.parseFactor()
		if err != nil {
			return decimal.Zero, err
		}
		if op == '*' {
			left = left.Mul(right)
			continue
		}
		if right.IsZero() {
			return decimal.Zero, fmt.Errorf("division by zero")
		}
		left = left.DivRound(right, divisionPlaces)
	}
}

// factor := '-' factor | '(' expression ')' | number
func (p *parser) parseFactor() (decimal.Decimal, error) {
	switch p.peek() {
	case '-':
		p.pos++
		v, err := p.parseFactor()
		return v.Neg(), err
	case '+':
		p.pos++
		return p.parseFactor()
	case '(':
		p.pos++
		v, err := p.parseExpression()
		if err != nil {
			return decimal.Zero, err
		}
		if p.peek() != ')' {
			return decimal.Zero, fmt.Errorf("unmatched parentheses")
		}
		p.pos++
		return v, nil
	}

	start := p.pos
	for p.pos < len(p.input) && (unicode.IsDigit(rune(p.input[p.pos])) || p.input[p.pos] == '.') {
		p.pos++
	}
	if start == p.pos {
		if p.pos >= len(p.input) {
			return decimal.Zero, fmt.Errorf("unexpected end of expression")
		}
		return decimal.Zero, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	v, err := decimal.NewFromString(p.input[start:p.pos])
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", p.input[start:p.pos])
	}
	return v, nil
}
