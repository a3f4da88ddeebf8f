package svc

import "errors"

// ErrNoExchangesEnabled 错误：启用的交易所不足两个
var ErrNoExchangesEnabled = errors.New("fewer than two exchanges enabled")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
