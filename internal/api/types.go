package api

import "encoding/json"

// 文档注释：远程函数批量请求
// 背景：数据仓库按批发送调用，每个调用是一行参数列表；本服务的函数只有一个参数（GeoJSON 文本）。
// 约束：calls 保留原始 JSON，以便区分缺失、null 与非数组三种批量级错误。
type batchRequest struct {
	RequestID          string            `json:"requestId"`
	Caller             string            `json:"caller"`
	SessionUser        string            `json:"sessionUser"`
	UserDefinedContext map[string]string `json:"userDefinedContext"`
	Calls              json.RawMessage   `json:"calls"`
}

// batchResponse：成功响应，replies 与 calls 等长且同序，每项是一个 JSON 文本
type batchResponse struct {
	Replies  []string `json:"replies"`
	Status   int      `json:"status"`
	Mimetype string   `json:"mimetype"`
}

// batchError：批量级失败响应
type batchError struct {
	Error    string `json:"error"`
	Status   int    `json:"status"`
	Mimetype string `json:"mimetype"`
}

// callError：单行失败时写入对应 reply 的内容
type callError struct {
	ErrorMessage string `json:"errorMessage"`
}

const mimeJSON = "application/json"
