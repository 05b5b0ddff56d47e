package response

// Result 网关 JSON 响应结构
type Result struct {
	Code int    `json:"code" example:"200" doc:"业务码：成功为 HTTP 状态码，失败为错误码"`
	Msg  string `json:"msg" example:"ok" doc:"响应消息"`
	Data any    `json:"data" doc:"响应数据"`
}
