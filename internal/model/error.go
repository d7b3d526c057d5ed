package model

type NotFoundError struct{}

func (e NotFoundError) Error() string {
	return "not found"
}

type MalformedRequestError struct {
	Param string
}

func (e MalformedRequestError) Error() string {
	return "malformed request param: " + e.Param
}
