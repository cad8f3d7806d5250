package earthengine

// 文档注释：表达式图节点（REST v1 ValueNode）
// 约束：各字段互斥，只设置其中一个；ConstantValue 须可 JSON 编码。
type ValueNode struct {
	ConstantValue           any                 `json:"constantValue,omitempty"`
	FunctionInvocationValue *FunctionInvocation `json:"functionInvocationValue,omitempty"`
	ArrayValue              *ArrayValue         `json:"arrayValue,omitempty"`
	DictionaryValue         *DictionaryValue    `json:"dictionaryValue,omitempty"`
	ValueReference          string              `json:"valueReference,omitempty"`
}

// FunctionInvocation：算法调用
type FunctionInvocation struct {
	FunctionName string               `json:"functionName"`
	Arguments    map[string]ValueNode `json:"arguments,omitempty"`
}

type ArrayValue struct {
	Values []*ValueNode `json:"values"`
}

type DictionaryValue struct {
	Values map[string]ValueNode `json:"values"`
}

// Expression：请求体中的表达式，Result 为 Values 中根节点的键
type Expression struct {
	Result string               `json:"result"`
	Values map[string]ValueNode `json:"values"`
}

type computeRequest struct {
	Expression *Expression `json:"expression"`
}

type computeResponse struct {
	Result any `json:"result"`
}
