package selector

// An operator-precedence parser.  There is no context-free recursion
// here: every token is an operator with a (right, left) rank pair, and
// a word is simply an operator of maximal rank that takes no
// arguments.  The loop in process() compares the operator on the left
// of the current handle to the operator on the right and either opens
// a new handle, closes the current one, or merges (for brackets).

import (
	"math"
	"strconv"
	"strings"

	"github.com/mila-iqia/ptera-sub000/tags"
)

type rank struct {
	right float64
	left  float64
}

func lassoc(p float64) rank { return rank{p, p + 1} }
func rassoc(p float64) rank { return rank{p, p - 1} }
func obrack(p float64) rank { return rank{p, 0} }
func cbrack(p float64) rank { return rank{0, p + 1} }

// ranks is the operator tower.  Ties are broken by these explicit
// pairs rather than a general-purpose grammar; the language is small
// and fixed.
var ranks = map[string]rank{
	",":  rassoc(10),
	"":   rassoc(50), // juxtaposition: tokenizes, but no operation accepts it
	">":  rassoc(100),
	">>": rassoc(100),
	"=":  lassoc(150),
	"~":  lassoc(150),
	":":  lassoc(200),
	"as": rassoc(250),
	"$":  rassoc(300),
	"!":  rassoc(300),
	"!!": rassoc(300),
	"(":  obrack(500),
	")":  cbrack(500),
}

var noRank = rank{math.Inf(-1), math.Inf(-1)}

func resolveRank(tok *token) (rank, error) {
	if tok == nil {
		return noRank, nil
	}
	if tok.typ == tokenOperator {
		if r, have := ranks[tok.value]; have {
			return r, nil
		}
	}
	if tok.typ == tokenWord || tok.typ == tokenString {
		return lassoc(1000), nil
	}
	return noRank, tok.syntaxError("invalid token")
}

// literalString is the parse result of a quoted string.
type literalString struct {
	value string
	tok   *token
}

// astNode is a completed handle: arguments interleaved with operator
// tokens.  The key encodes which arguments are present and what the
// operators are, e.g. "X > X" or "_ ( X ) _".
type astNode struct {
	args []interface{}
	ops  []*token
	key  string
}

// Parse compiles pattern text into an (unresolved) pattern tree.
func Parse(text string) (*Call, error) {
	x, err := process(text, lex(text))
	if err != nil {
		return nil, err
	}
	switch vv := x.(type) {
	case nil:
		return nil, &SyntaxError{Text: text, Msg: "empty pattern"}
	case *Element:
		// A bare variable watches its writes anywhere: the capture
		// of a wildcard call.
		return &Call{
			Element:  &Element{},
			Captures: []*Element{vv.withFocus(1)},
		}, nil
	case *Call:
		root := *vv
		root.Immediate = false
		return &root, nil
	default:
		return nil, &SyntaxError{Text: text, Msg: "pattern must be a call"}
	}
}

func process(text string, tokens []*token) (interface{}, error) {
	var (
		stack   [][]interface{}
		middle  interface{}
		left    *token
		pos     = 0
		current = []interface{}{nil, nil}
	)

	next := func() *token {
		if pos < len(tokens) {
			tok := tokens[pos]
			pos++
			return tok
		}
		return nil
	}
	right := next()

	for {
		lr, err := resolveRank(left)
		if err != nil {
			return nil, err
		}
		rr, err := resolveRank(right)
		if err != nil {
			return nil, err
		}

		switch {
		case left == nil && right == nil:
			return middle, nil

		case lr.left < rr.right:
			// Open a new handle, as if inserting "(" between
			// left and middle.
			stack = append(stack, current)
			current = []interface{}{middle, right}
			middle = nil
			left = right
			right = next()

		case rr.right < lr.left:
			// Close the current handle, as if inserting ")"
			// between middle and right.
			current = append(current, middle)
			if middle, err = finalize(text, current); err != nil {
				return nil, err
			}
			if len(stack) == 0 {
				if right != nil {
					return nil, right.syntaxError("unbalanced pattern")
				}
				return nil, &SyntaxError{Text: text, Msg: "unbalanced pattern"}
			}
			current = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			left, _ = current[len(current)-1].(*token)

		default:
			// Same operation (e.g. an opening bracket meeting
			// its closing bracket): merge into the current
			// handle.
			current = append(current, middle, right)
			middle = nil
			left = right
			right = next()
		}
	}
}

// finalize turns a completed handle into a pattern node.
func finalize(text string, parts []interface{}) (interface{}, error) {
	if len(parts) == 3 && parts[0] == nil && parts[2] == nil {
		if tok, is := parts[1].(*token); is {
			return leaf(tok)
		}
		return parts[1], nil
	}

	node := &astNode{}
	keyParts := make([]string, 0, len(parts))
	for i, p := range parts {
		if i%2 == 0 {
			node.args = append(node.args, p)
			if p == nil {
				keyParts = append(keyParts, "_")
			} else {
				keyParts = append(keyParts, "X")
			}
			continue
		}
		tok, is := p.(*token)
		if !is || tok == nil {
			return nil, &SyntaxError{Text: text, Msg: "invalid pattern"}
		}
		node.ops = append(node.ops, tok)
		keyParts = append(keyParts, tok.value)
	}
	node.key = strings.Join(keyParts, " ")

	return apply(node)
}

// leaf converts a word or string token.
func leaf(tok *token) (interface{}, error) {
	switch tok.typ {
	case tokenWord:
		if tok.value == "*" {
			return &Element{}, nil
		}
		return &Element{Name: tok.value, Capture: tok.value}, nil
	case tokenString:
		return &literalString{value: tok.value, tok: tok}, nil
	}
	return nil, tok.syntaxError("invalid token")
}

// apply builds a pattern node from a completed astNode, dispatching on
// its key.
func apply(node *astNode) (interface{}, error) {
	op := node.ops[0]
	switch node.key {

	case "_ ( X ) _":
		return node.args[1], nil

	case "X ( X ) _":
		return makeCall(op, node.args[0], node.args[1])

	case "X ( _ ) _":
		return makeCall(op, node.args[0], nil)

	case "_ ( _ ) _":
		return nil, op.syntaxError("empty group")

	case "X , X":
		b := node.args[1]
		list, is := b.([]interface{})
		if !is {
			list = []interface{}{b}
		}
		return append([]interface{}{node.args[0]}, list...), nil

	case "X > X":
		return makeNested(op, node.args[0], node.args[1], true)

	case "X >> X":
		return makeNested(op, node.args[0], node.args[1], false)

	case "X = X":
		return makeValueFilter(op, node.args[0], node.args[1])

	case "X ~ X":
		return makePredicate(op, node.args[0], node.args[1])

	case "X : X":
		return makeCategory(op, node.args[0], node.args[1])

	case "_ : X":
		return makeCategory(op, nil, node.args[1])

	case "X as X":
		return makeAs(op, node.args[0], node.args[1])

	case "_ ! X":
		return makeFocus(op, node.args[1], 1)

	case "_ !! X":
		return makeFocus(op, node.args[1], 2)

	case "_ $ X":
		return makeDollar(op, node.args[1])

	case "X  X": // juxtaposition
		return nil, op.syntaxError("expected an operator between terms")
	}

	return nil, op.syntaxError("invalid operation")
}

func ensureCall(x interface{}) (*Call, bool) {
	switch vv := x.(type) {
	case *Call:
		return vv, true
	case *Element:
		return &Call{Element: vv, Immediate: true}, true
	}
	return nil, false
}

func makeCall(op *token, fn interface{}, inner interface{}) (interface{}, error) {
	el, is := fn.(*Element)
	if !is {
		return nil, op.syntaxError("only a name can be called")
	}

	var items []interface{}
	switch vv := inner.(type) {
	case nil:
	case []interface{}:
		items = vv
	default:
		items = []interface{}{vv}
	}

	call := &Call{Element: el, Immediate: true}
	for _, item := range items {
		switch vv := item.(type) {
		case *Element:
			call.Captures = append(call.Captures, vv)
		case *Call:
			child := *vv
			child.Immediate = true
			call.Children = append(call.Children, &child)
		default:
			return nil, op.syntaxError("invalid item in capture list")
		}
	}
	return call, nil
}

func makeNested(op *token, parent, child interface{}, immediate bool) (interface{}, error) {
	pc, is := ensureCall(parent)
	if !is {
		return nil, op.syntaxError("invalid parent for nesting")
	}

	acc := *pc
	acc.Captures = append([]*Element{}, pc.Captures...)
	acc.Children = append([]*Call{}, pc.Children...)

	switch vv := child.(type) {
	case *Element:
		// "a > b" is sugar for "a(!b)": a single implicit focal
		// capture.
		el := vv.withFocus(1)
		if !immediate {
			c := *el
			c.Deep = true
			el = &c
		}
		acc.Captures = append(acc.Captures, el)
	case *Call:
		cc := *vv
		cc.Immediate = immediate
		acc.Children = append(acc.Children, &cc)
	default:
		return nil, op.syntaxError("invalid child for nesting")
	}
	return &acc, nil
}

func makeValueFilter(op *token, lhs, rhs interface{}) (interface{}, error) {
	el, is := lhs.(*Element)
	if !is {
		return nil, op.syntaxError(`"=" must follow a variable`)
	}
	if el.Value != nil {
		return nil, op.syntaxError("variable already has a value filter")
	}

	var value interface{}
	switch vv := rhs.(type) {
	case *literalString:
		value = vv.value
	case *Element:
		if vv.Name == "" {
			return nil, op.syntaxError("invalid literal")
		}
		value = parseLiteral(vv.Name)
	default:
		return nil, op.syntaxError("invalid literal")
	}

	acc := *el
	acc.Value = &EqualValue{Value: value}
	return &acc, nil
}

func parseLiteral(s string) interface{} {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	return s
}

func makePredicate(op *token, lhs, rhs interface{}) (interface{}, error) {
	el, is := lhs.(*Element)
	if !is {
		return nil, op.syntaxError(`"~" must follow a variable`)
	}
	if el.Value != nil {
		return nil, op.syntaxError("variable already has a value filter")
	}
	var name string
	switch vv := rhs.(type) {
	case *Element:
		name = vv.Name
	case *literalString:
		// A quoted operand names a predicate the environment can
		// compile, e.g. an ECMAScript expression.
		name = vv.value
	}
	if name == "" {
		return nil, op.syntaxError("a predicate must be a name")
	}

	acc := *el
	acc.Value = &Predicate{Name: name}
	return &acc, nil
}

func makeCategory(op *token, lhs, rhs interface{}) (interface{}, error) {
	// "(" binds tighter than ":", so in "f:Tag(x)" the call forms
	// around the category name.  Unfold it: the call target is the
	// lhs, constrained by the category.
	if call, is := rhs.(*Call); is {
		catEl := call.Element
		if catEl.Name == "" || catEl.Category != nil ||
			catEl.Value != nil || catEl.Focus != 0 {
			return nil, op.syntaxError("a category must be a name")
		}
		target, err := makeCategory(op, lhs, &Element{Name: catEl.Name})
		if err != nil {
			return nil, err
		}
		el, is := target.(*Element)
		if !is {
			return nil, op.syntaxError(`":" must follow a variable`)
		}
		acc := *call
		acc.Element = el
		return &acc, nil
	}

	name, is := rhs.(*Element)
	if !is || name.Name == "" || name.Category != nil ||
		name.Value != nil || name.Focus != 0 {
		return nil, op.syntaxError("a category must be a name")
	}
	cat := tags.New(name.Name)

	switch vv := lhs.(type) {
	case nil:
		// A bare ":Fruit" is a wildcard constrained by category.
		return &Element{Category: cat}, nil
	case *Element:
		acc := *vv
		acc.Category = cat.And(acc.Category)
		return &acc, nil
	case *Call:
		// "f(x):Tag" categorizes the whole call's target.
		el := *vv.Element
		el.Category = cat.And(el.Category)
		acc := *vv
		acc.Element = &el
		return &acc, nil
	}
	return nil, op.syntaxError(`":" must follow a variable`)
}

func makeAs(op *token, lhs, rhs interface{}) (interface{}, error) {
	el, is := lhs.(*Element)
	if !is {
		return nil, op.syntaxError(`"as" must follow a variable`)
	}
	name, is := rhs.(*Element)
	if !is || name.Name == "" {
		return nil, op.syntaxError("a capture name must be a name")
	}

	acc := *el
	acc.Capture = name.Name
	return &acc, nil
}

func makeFocus(op *token, arg interface{}, level int) (interface{}, error) {
	switch vv := arg.(type) {
	case *Element:
		return vv.withFocus(level), nil
	case *Call:
		// The focus of "!g(!y)" is already inside the call;
		// the outer marker is absorbed.
		return vv, nil
	}
	return nil, op.syntaxError(`"!" must precede a variable`)
}

func makeDollar(op *token, arg interface{}) (interface{}, error) {
	el, is := arg.(*Element)
	if !is || el.Name == "" {
		return nil, op.syntaxError(`"$" must precede a name`)
	}

	acc := *el
	acc.Capture = acc.Name
	acc.Name = ""
	return &acc, nil
}
