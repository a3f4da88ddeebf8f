package service

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// 错误分类
var (
	ErrNetworkFailure     = errors.New("network failure")
	ErrVenueRejection     = errors.New("venue rejection")
	ErrFillTimeout        = errors.New("fill timeout")
	ErrSizing             = errors.New("sizing error")
	ErrInvalidPrecision   = fmt.Errorf("%w: invalid precision", ErrSizing)
	ErrSizeTooSmall       = fmt.Errorf("%w: size too small", ErrSizing)
	ErrStaleData          = errors.New("stale funding data")
	ErrClockUnavailable   = errors.New("server clock unavailable")
	ErrBalanceUnavailable = errors.New("balance unavailable")
	ErrRetriesExhausted   = errors.New("order retries exhausted")
)

// VenueError 交易所拒绝：非 2xx 或业务错误码
type VenueError struct {
	Venue  string
	Status int    // HTTP 状态码，业务错误时为 200
	Code   string // 交易所错误码
	Msg    string
}

func (e *VenueError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s rejected [http %d, code %s]: %s", e.Venue, e.Status, e.Code, e.Msg)
	}
	return fmt.Sprintf("%s rejected [http %d]: %s", e.Venue, e.Status, e.Msg)
}

func (e *VenueError) Unwrap() error { return ErrVenueRejection }

// RateLimited 429
func (e *VenueError) RateLimited() bool { return e.Status == http.StatusTooManyRequests }

// NewVenueError 创建交易所拒绝错误
func NewVenueError(venue string, status int, code, msg string) *VenueError {
	return &VenueError{Venue: venue, Status: status, Code: code, Msg: msg}
}

// IsRateLimited 是否为 429
func IsRateLimited(err error) bool {
	var ve *VenueError
	return errors.As(err, &ve) && ve.RateLimited()
}

// NetworkError 请求异常或超时
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }

func (e *NetworkError) Unwrap() []error { return []error{ErrNetworkFailure, e.Err} }

// WrapTransport 把 http.Client.Do 的错误归类为 NetworkFailure
func WrapTransport(op string, err error) error {
	if err == nil {
		return nil
	}
	return &NetworkError{Op: op, Err: err}
}

// IsNetworkFailure 是否为网络错误
func IsNetworkFailure(err error) bool {
	if errors.Is(err, ErrNetworkFailure) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}
