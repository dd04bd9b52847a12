package check

// Response carries the outcome of one check execution: a status plus an open
// bag of named data values the check wants to persist with the result.
type Response struct {
	status Status
	data   map[string]any
}

func NewResponse() *Response {
	return &Response{
		status: StatusUnknown,
		data:   make(map[string]any),
	}
}

// NewResponseWithStatus is a shorthand for checks that only report a status.
func NewResponseWithStatus(status Status) *Response {
	resp := NewResponse()
	resp.SetStatus(status)
	return resp
}

func (r *Response) SetStatus(status Status) {
	r.status = status
}

func (r *Response) Status() Status {
	return r.status
}

// Set stores a named data value on the response.
func (r *Response) Set(name string, value any) {
	r.data[name] = value
}

// Data returns the data bag. Callers must not mutate it after handing the
// response to the runner.
func (r *Response) Data() map[string]any {
	return r.data
}
