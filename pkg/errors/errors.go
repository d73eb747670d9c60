// Package errors 定义 callreplay 各后端共享的错误分类。
//
// 存储、编解码、归档与 session 文件导入都用 Wrap/Wrapf 附加上下文，
// 调用方（CLI、Chain）只需 Is 判断分类，不必认识具体后端的错误类型。
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 归档对象或会话不存在
	ErrNotFound = errors.New("not found")
	// ErrInvalidArg 空会话 id、非法 lane 等调用方错误
	ErrInvalidArg = errors.New("invalid argument")
	// ErrUnsupported 配置了未知的存储、编解码或归档类型，或后端不支持该操作
	ErrUnsupported = errors.New("unsupported")
	// ErrNilSlot session 文件中的空槽位；只有文件与内存存储能表示它
	ErrNilSlot = fmt.Errorf("nil slot: %w", ErrInvalidArg)
)

func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Wrap 在 err 前加上 msg；err 为 nil 时返回 nil
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
