package llm

import (
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/cloudwego/eino/schema"
)

// ChunkStream 惰性、有限、不可重放的文本分片序列
type ChunkStream struct {
	provider string
	model    string
	reader   *schema.StreamReader[*schema.Message]
	extract  func(*schema.Message) (Usage, bool)

	mu       sync.Mutex
	usage    Usage
	hasUsage bool
	done     bool
	closed   bool
}

func newChunkStream(provider, model string, reader *schema.StreamReader[*schema.Message], extract func(*schema.Message) (Usage, bool)) *ChunkStream {
	return &ChunkStream{provider: provider, model: model, reader: reader, extract: extract}
}

// Recv 返回下一个非空分片，结束时返回 io.EOF
func (s *ChunkStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.done || s.closed {
		return "", io.EOF
	}
	for {
		msg, err := s.reader.Recv()
		if errors.Is(err, io.EOF) {
			s.done = true
			return "", io.EOF
		}
		if err != nil {
			s.done = true
			return "", &ProviderCallFailed{Provider: s.provider, Model: s.model, Cause: err}
		}
		if msg == nil {
			continue
		}
		if u, ok := s.extract(msg); ok {
			s.usage, s.hasUsage = u, true
		}
		if msg.Content == "" {
			continue
		}
		return msg.Content, nil
	}
}

// Usage 返回提供商在流中上报的用量（部分提供商仅在最后一个分片携带）
func (s *ChunkStream) Usage() (Usage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage, s.hasUsage
}

// Close 释放底层连接，可重复调用
func (s *ChunkStream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.reader.Close()
}

// Collect 读取剩余全部分片并拼接
func (s *ChunkStream) Collect() (string, error) {
	var sb strings.Builder
	for {
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			return sb.String(), nil
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(chunk)
	}
}
