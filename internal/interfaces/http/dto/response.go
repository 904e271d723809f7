package dto

// Response is the envelope of every API reply. Exactly one of Data and
// Error is set.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
	Meta    *Meta      `json:"meta,omitempty"`
}

type ErrorInfo struct {
	Code      string             `json:"code"`
	Message   string             `json:"message"`
	RequestID string             `json:"request_id,omitempty"`
	Details   []ValidationDetail `json:"details,omitempty"`
}

// ValidationDetail names one rejected field
type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Meta describes one page of a listing
type Meta struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

func NewMeta(total int64, page, pageSize int) *Meta {
	m := &Meta{Total: total, Page: page, PageSize: pageSize}
	if pageSize > 0 {
		size := int64(pageSize)
		m.TotalPages = int((total + size - 1) / size)
	}
	return m
}

func OK(data any) Response { return Response{Success: true, Data: data} }

func Page(data any, total int64, page, pageSize int) Response {
	return Response{Success: true, Data: data, Meta: NewMeta(total, page, pageSize)}
}

// Fail builds an error envelope; details are optional field errors
func Fail(code, message, requestID string, details ...ValidationDetail) Response {
	return Response{Error: &ErrorInfo{Code: code, Message: message, RequestID: requestID, Details: details}}
}
