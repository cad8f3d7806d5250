// 包 earthengine：Earth Engine REST 客户端与表达式图构建
package earthengine

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Args：函数调用参数，键为算法参数名
type Args map[string]*ValueNode

// Constant：常量节点（数字、字符串、布尔、可 JSON 编码的坐标数组）
func Constant(v any) *ValueNode { return &ValueNode{ConstantValue: v} }

// Invoke：算法调用节点，nil 参数被忽略
func Invoke(name string, args Args) *ValueNode {
	m := make(map[string]ValueNode, len(args))
	for k, v := range args {
		if v != nil {
			m[k] = *v
		}
	}
	return &ValueNode{FunctionInvocationValue: &FunctionInvocation{FunctionName: name, Arguments: m}}
}

// Array：数组节点
func Array(items ...*ValueNode) *ValueNode {
	return &ValueNode{ArrayValue: &ArrayValue{Values: items}}
}

// Strings：字符串常量数组，常用于波段名
func Strings(ss ...string) *ValueNode {
	items := make([]*ValueNode, len(ss))
	for i, s := range ss {
		items[i] = Constant(s)
	}
	return Array(items...)
}

// Dict：字典节点
func Dict(values map[string]*ValueNode) *ValueNode {
	m := make(map[string]ValueNode, len(values))
	for k, v := range values {
		m[k] = *v
	}
	return &ValueNode{DictionaryValue: &DictionaryValue{Values: m}}
}

// 文档注释：将表达式树编码为请求体中的 Expression
// 背景：图层定义中同一子图会被多次引用（阈值化后的集成影像同时参与 unclassified 与 confusion），
// 重复出现的调用节点提升到 values 表并以 valueReference 引用，减小请求体积。
// 约束：根节点固定放在键 "0"；提升节点按首次出现顺序编号。
func Encode(root *ValueNode) (*Expression, error) {
	if root == nil {
		return nil, fmt.Errorf("empty expression")
	}
	counts := map[string]int{}
	if err := countNodes(*root, counts); err != nil {
		return nil, err
	}
	h := &hoister{counts: counts, refs: map[string]string{}, values: map[string]ValueNode{}}
	out, err := h.rewrite(*root, true)
	if err != nil {
		return nil, err
	}
	h.values["0"] = out
	return &Expression{Result: "0", Values: h.values}, nil
}

func nodeKey(n ValueNode) (string, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return "", fmt.Errorf("encode value node: %w", err)
	}
	return string(b), nil
}

func countNodes(n ValueNode, counts map[string]int) error {
	if n.FunctionInvocationValue != nil {
		k, err := nodeKey(n)
		if err != nil {
			return err
		}
		counts[k]++
		if counts[k] > 1 {
			// 子树已计数一次，重复计数会把子节点误判为多次引用
			return nil
		}
		for _, a := range n.FunctionInvocationValue.Arguments {
			if err := countNodes(a, counts); err != nil {
				return err
			}
		}
	}
	if n.ArrayValue != nil {
		for _, a := range n.ArrayValue.Values {
			if a == nil {
				continue
			}
			if err := countNodes(*a, counts); err != nil {
				return err
			}
		}
	}
	if n.DictionaryValue != nil {
		for _, a := range n.DictionaryValue.Values {
			if err := countNodes(a, counts); err != nil {
				return err
			}
		}
	}
	return nil
}

type hoister struct {
	counts map[string]int
	refs   map[string]string
	values map[string]ValueNode
	next   int
}

func (h *hoister) rewrite(n ValueNode, root bool) (ValueNode, error) {
	var key string
	if n.FunctionInvocationValue != nil && !root {
		k, err := nodeKey(n)
		if err != nil {
			return n, err
		}
		key = k
		if id, ok := h.refs[key]; ok {
			return ValueNode{ValueReference: id}, nil
		}
	}
	out := n
	if n.FunctionInvocationValue != nil {
		fi := *n.FunctionInvocationValue
		args := make(map[string]ValueNode, len(fi.Arguments))
		for _, name := range sortedKeys(fi.Arguments) {
			r, err := h.rewrite(fi.Arguments[name], false)
			if err != nil {
				return n, err
			}
			args[name] = r
		}
		fi.Arguments = args
		out.FunctionInvocationValue = &fi
	}
	if n.ArrayValue != nil {
		items := make([]*ValueNode, len(n.ArrayValue.Values))
		for i, a := range n.ArrayValue.Values {
			if a == nil {
				continue
			}
			r, err := h.rewrite(*a, false)
			if err != nil {
				return n, err
			}
			items[i] = &r
		}
		out.ArrayValue = &ArrayValue{Values: items}
	}
	if n.DictionaryValue != nil {
		vals := make(map[string]ValueNode, len(n.DictionaryValue.Values))
		for _, k := range sortedKeys(n.DictionaryValue.Values) {
			r, err := h.rewrite(n.DictionaryValue.Values[k], false)
			if err != nil {
				return n, err
			}
			vals[k] = r
		}
		out.DictionaryValue = &DictionaryValue{Values: vals}
	}
	if key != "" && h.counts[key] > 1 {
		h.next++
		id := strconv.Itoa(h.next)
		h.refs[key] = id
		h.values[id] = out
		return ValueNode{ValueReference: id}, nil
	}
	return out, nil
}

// sortedKeys：按键排序遍历，保证提升节点编号稳定
func sortedKeys(m map[string]ValueNode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
