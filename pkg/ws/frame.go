package ws

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Opcode 帧操作码，RFC 6455 §5.2
type Opcode byte

const (
	OpContinuation Opcode = 0x0
	OpText         Opcode = 0x1
	OpBinary       Opcode = 0x2
	OpClose        Opcode = 0x8
	OpPing         Opcode = 0x9
	OpPong         Opcode = 0xA
)

// String 返回操作码名称
func (op Opcode) String() string {
	switch op {
	case OpContinuation:
		return "continuation"
	case OpText:
		return "text"
	case OpBinary:
		return "binary"
	case OpClose:
		return "close"
	case OpPing:
		return "ping"
	case OpPong:
		return "pong"
	default:
		return fmt.Sprintf("opcode(0x%X)", byte(op))
	}
}

// IsControl 判断是否为控制帧
func (op Opcode) IsControl() bool {
	return op >= OpClose
}

const (
	finBit     = 0x80 // 首字节最高位，单帧消息恒为 1
	rsvMask    = 0x70 // RSV1-3，未协商扩展时必须为 0
	opcodeMask = 0x0F
	maskBit    = 0x80 // 长度字节最高位，客户端帧必须掩码
	lenMask    = 0x7F
	len16      = 126 // 16 位扩展长度标记
	len64      = 127 // 64 位扩展长度标记

	maxControlPayload = 125 // 控制帧负载上限，RFC 6455 §5.5

	// 可恢复丢弃的负载上限。超过此值的异常帧无法通过消费负载
	// 重新对齐流，只能断开连接。
	maxDiscard = 1 << 26
)

// Frame 单个未分片的协议帧
type Frame struct {
	Opcode  Opcode
	Payload []byte
}

// EncodeFrame 编码一个未掩码的单帧（服务端出站方向）。
// 负载长度 <126 使用 7 位短格式，<65536 使用标记 126 加 16 位
// 大端长度，否则使用标记 127 加 64 位大端长度（高 32 位为 0）。
func EncodeFrame(op Opcode, payload []byte) []byte {
	n := len(payload)
	buf := make([]byte, 0, 10+n)
	buf = append(buf, finBit|byte(op))
	switch {
	case n < len16:
		buf = append(buf, byte(n))
	case n < 1<<16:
		buf = append(buf, len16)
		buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	default:
		buf = append(buf, len64)
		buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	}
	return append(buf, payload...)
}

// EncodeMaskedFrame 编码一个掩码帧（客户端出站方向）。
// 负载按 RFC 6455 §5.3 与 4 字节密钥循环异或。
func EncodeMaskedFrame(op Opcode, payload []byte, key [4]byte) []byte {
	n := len(payload)
	buf := make([]byte, 0, 14+n)
	buf = append(buf, finBit|byte(op))
	switch {
	case n < len16:
		buf = append(buf, maskBit|byte(n))
	case n < 1<<16:
		buf = append(buf, maskBit|len16)
		buf = binary.BigEndian.AppendUint16(buf, uint16(n))
	default:
		buf = append(buf, maskBit|len64)
		buf = binary.BigEndian.AppendUint64(buf, uint64(n))
	}
	buf = append(buf, key[:]...)
	start := len(buf)
	buf = append(buf, payload...)
	maskBytes(key, buf[start:])
	return buf
}

// EncodeClose 编码关闭帧：2 字节大端状态码加 UTF-8 原因
func EncodeClose(code uint16, reason string) []byte {
	p := make([]byte, 2+len(reason))
	binary.BigEndian.PutUint16(p, code)
	copy(p[2:], reason)
	return EncodeFrame(OpClose, p)
}

// ParseClose 解析关闭帧负载。负载不足 2 字节时返回 1005（无状态码）。
func ParseClose(payload []byte) (code int, reason string) {
	if len(payload) < 2 {
		return CloseNoStatus, ""
	}
	return int(binary.BigEndian.Uint16(payload[:2])), string(payload[2:])
}

// ReadFrame 从 r 读取一个完整帧并去掩码。
//
// 返回 ErrMalformedFrame 或 ErrFrameTooLarge 时，异常帧的负载已
// 从流中消费完毕，调用方可以丢弃该帧并继续读取下一帧；返回其余
// 错误时流已不可用，调用方应断开连接。
func ReadFrame(r io.Reader, maxSize int64) (Frame, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Frame{}, err
	}
	fin := hdr[0]&finBit != 0
	rsv := hdr[0] & rsvMask
	op := Opcode(hdr[0] & opcodeMask)
	masked := hdr[1]&maskBit != 0
	n := int64(hdr[1] & lenMask)

	switch n {
	case len16:
		var ext [2]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		n = int64(binary.BigEndian.Uint16(ext[:]))
	case len64:
		var ext [8]byte
		if _, err := io.ReadFull(r, ext[:]); err != nil {
			return Frame{}, err
		}
		v := binary.BigEndian.Uint64(ext[:])
		if v>>32 != 0 {
			// 高 32 位非零：无法消费重对齐，视为流失步
			return Frame{}, fmt.Errorf("ws: 64-bit frame length %d out of range", v)
		}
		n = int64(v)
	}

	var key [4]byte
	if masked {
		if _, err := io.ReadFull(r, key[:]); err != nil {
			return Frame{}, err
		}
	}

	// 异常帧：消费负载保持流对齐后返回可恢复错误
	switch {
	case rsv != 0, !fin, op == OpContinuation,
		op.IsControl() && n > maxControlPayload:
		return Frame{}, discard(r, n, ErrMalformedFrame)
	case maxSize > 0 && n > maxSize:
		return Frame{}, discard(r, n, ErrFrameTooLarge)
	}

	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, err
	}
	if masked {
		maskBytes(key, payload)
	}
	return Frame{Opcode: op, Payload: payload}, nil
}

// discard 消费 n 字节负载后返回 cause；负载超过可恢复上限或
// 消费失败时返回使流不可用的错误。
func discard(r io.Reader, n int64, cause error) error {
	if n > maxDiscard {
		return fmt.Errorf("ws: cannot recover stream, frame length %d exceeds discard limit", n)
	}
	if _, err := io.CopyN(io.Discard, r, n); err != nil {
		return err
	}
	return cause
}

// maskBytes 与 4 字节密钥循环异或，掩码与去掩码同为一次异或
func maskBytes(key [4]byte, b []byte) {
	for i := range b {
		b[i] ^= key[i%4]
	}
}
