package eval

import (
	"reflect"
	"strconv"
	"strings"

	"github.com/27392/mybatis-3-sub000/internal/errs"
)

// 手写的递归下降解析，边解析边求值
// 优先级：or < and < not < 比较 < 加法 < 原子

type parser struct {
	src      string
	pos      int
	bindings map[string]any
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t' || p.src[p.pos] == '\n') {
		p.pos++
	}
}

// matchWord 匹配一个完整单词，避免把 order 认成 or
func (p *parser) matchWord(w string) bool {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], w) {
		return false
	}
	end := p.pos + len(w)
	if end < len(p.src) && isIdentChar(p.src[end]) {
		return false
	}
	p.pos = end
	return true
}

func (p *parser) matchOp(op string) bool {
	p.skipSpace()
	if strings.HasPrefix(p.src[p.pos:], op) {
		p.pos += len(op)
		return true
	}
	return false
}

func (p *parser) parseOr() (any, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		if !p.matchOp("||") && !p.matchWord("or") {
			return left, nil
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) || Truthy(right)
	}
}

func (p *parser) parseAnd() (any, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for {
		if !p.matchOp("&&") && !p.matchWord("and") {
			return left, nil
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = Truthy(left) && Truthy(right)
	}
}

func (p *parser) parseNot() (any, error) {
	if p.matchWord("not") {
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	p.skipSpace()
	// != 也以 ! 开头，这里只吃单独的 !
	if p.pos < len(p.src) && p.src[p.pos] == '!' && !strings.HasPrefix(p.src[p.pos:], "!=") {
		p.pos++
		v, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return !Truthy(v), nil
	}
	return p.parseCompare()
}

// 比较运算符按长度降序匹配，>= 要先于 >
var compareOps = []struct {
	token string
	word  bool
	op    string
}{
	{token: "==", op: "=="}, {token: "!=", op: "!="},
	{token: ">=", op: ">="}, {token: "<=", op: "<="},
	{token: ">", op: ">"}, {token: "<", op: "<"},
	{token: "eq", word: true, op: "=="}, {token: "neq", word: true, op: "!="},
	{token: "ne", word: true, op: "!="},
	{token: "gte", word: true, op: ">="}, {token: "lte", word: true, op: "<="},
	{token: "gt", word: true, op: ">"}, {token: "lt", word: true, op: "<"},
}

func (p *parser) parseCompare() (any, error) {
	left, err := p.parseAdd()
	if err != nil {
		return nil, err
	}
	for _, c := range compareOps {
		matched := false
		if c.word {
			matched = p.matchWord(c.token)
		} else {
			matched = p.matchOp(c.token)
		}
		if !matched {
			continue
		}
		right, err := p.parseAdd()
		if err != nil {
			return nil, err
		}
		return compare(left, right, c.op)
	}
	return left, nil
}

func (p *parser) parseAdd() (any, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.matchOp("+") {
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = add(left, right)
	}
	return left, nil
}

func (p *parser) parseAtom() (any, error) {
	p.skipSpace()
	if p.pos >= len(p.src) {
		return nil, errs.NewErrExpression(p.src, "表达式意外结束")
	}
	c := p.src[p.pos]
	switch {
	case c == '(':
		p.pos++
		v, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if !p.matchOp(")") {
			return nil, errs.NewErrExpression(p.src, "括号不匹配")
		}
		return v, nil
	case c == '\'' || c == '"':
		return p.parseString(c)
	case c >= '0' && c <= '9' || c == '-':
		return p.parseNumber()
	default:
		return p.parsePathOrKeyword()
	}
}

func (p *parser) parseString(quote byte) (any, error) {
	p.pos++
	start := p.pos
	for p.pos < len(p.src) && p.src[p.pos] != quote {
		p.pos++
	}
	if p.pos >= len(p.src) {
		return nil, errs.NewErrExpression(p.src, "字符串未闭合")
	}
	s := p.src[start:p.pos]
	p.pos++
	return s, nil
}

func (p *parser) parseNumber() (any, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	isFloat := false
	for p.pos < len(p.src) && (p.src[p.pos] >= '0' && p.src[p.pos] <= '9' || p.src[p.pos] == '.') {
		if p.src[p.pos] == '.' {
			isFloat = true
		}
		p.pos++
	}
	s := p.src[start:p.pos]
	if isFloat {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, errs.NewErrExpression(p.src, "非法数字 "+s)
		}
		return f, nil
	}
	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, errs.NewErrExpression(p.src, "非法数字 "+s)
	}
	return i, nil
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' ||
		c >= '0' && c <= '9' || c == '_' || c == '.' || c == '[' || c == ']' || c == '$'
}

func (p *parser) parsePathOrKeyword() (any, error) {
	start := p.pos
	for p.pos < len(p.src) && isIdentChar(p.src[p.pos]) {
		p.pos++
	}
	word := p.src[start:p.pos]
	switch word {
	case "":
		return nil, errs.NewErrExpression(p.src, "非法字符")
	case "true":
		return true, nil
	case "false":
		return false, nil
	case "null", "nil":
		return nil, nil
	}
	return Resolve(word, p.bindings)
}

// compare 比较两个值。数值统一转 float64，字符串按字典序，其余走 DeepEqual
func compare(left, right any, op string) (any, error) {
	if left == nil || right == nil {
		switch op {
		case "==":
			return isNilValue(left) && isNilValue(right), nil
		case "!=":
			return !(isNilValue(left) && isNilValue(right)), nil
		default:
			// nil 参与大小比较恒为假
			return false, nil
		}
	}
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		switch op {
		case "==":
			return lf == rf, nil
		case "!=":
			return lf != rf, nil
		case ">":
			return lf > rf, nil
		case ">=":
			return lf >= rf, nil
		case "<":
			return lf < rf, nil
		case "<=":
			return lf <= rf, nil
		}
	}
	ls, lsok := left.(string)
	rs, rsok := right.(string)
	if lsok && rsok {
		switch op {
		case "==":
			return ls == rs, nil
		case "!=":
			return ls != rs, nil
		case ">":
			return ls > rs, nil
		case ">=":
			return ls >= rs, nil
		case "<":
			return ls < rs, nil
		case "<=":
			return ls <= rs, nil
		}
	}
	switch op {
	case "==":
		return reflect.DeepEqual(left, right), nil
	case "!=":
		return !reflect.DeepEqual(left, right), nil
	}
	return false, nil
}

// isNilValue nil 接口和 nil 指针都算 nil
func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

func asFloat(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}

// add bind 表达式里的 '%' + name + '%' 这种拼接
// 两边都是数值就做加法，否则按字符串拼
func add(left, right any) any {
	lf, lok := asFloat(left)
	rf, rok := asFloat(right)
	if lok && rok {
		li, liok := left.(int64)
		ri, riok := right.(int64)
		if liok && riok {
			return li + ri
		}
		return lf + rf
	}
	return toDisplayString(left) + toDisplayString(right)
}

func toDisplayString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10)
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64)
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool())
	}
	return ""
}
