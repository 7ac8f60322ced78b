package ai

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/openai/openai-go"
)

// classifyStatus maps an HTTP status code onto a retry class.
func classifyStatus(status int) Class {
	switch status {
	case http.StatusTooManyRequests:
		return ClassRateLimited
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return ClassServiceUnavailable
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return ClassTimeout
	default:
		return ClassOther
	}
}

// classifyGeneric handles transport-level errors and message heuristics
// shared by both providers.
func classifyGeneric(err error) Class {
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota"):
		return ClassRateLimited
	case strings.Contains(msg, "overloaded") || strings.Contains(msg, "unavailable"):
		return ClassServiceUnavailable
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out") || strings.Contains(msg, "deadline exceeded"):
		return ClassTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host") || strings.Contains(msg, "broken pipe") || strings.Contains(msg, "eof"):
		return ClassNetwork
	default:
		return ClassOther
	}
}

// retryAfterHeader parses a Retry-After header value in seconds.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil && secs > 0 {
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}

// OpenAIClassifier classifies errors returned by the OpenAI SDK.
type OpenAIClassifier struct{}

func (OpenAIClassifier) Classify(err error) Class {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		if class := classifyStatus(apierr.StatusCode); class != ClassOther {
			return class
		}
		return classifyGeneric(err)
	}
	return classifyGeneric(err)
}

func (OpenAIClassifier) RetryAfter(err error) time.Duration {
	var apierr *openai.Error
	if errors.As(err, &apierr) {
		return retryAfterHeader(apierr.Response)
	}
	return 0
}

// AnthropicClassifier classifies errors returned by the Anthropic SDK.
// Anthropic reports sustained overload as 529.
type AnthropicClassifier struct{}

func (AnthropicClassifier) Classify(err error) Class {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		if apierr.StatusCode == 529 {
			return ClassServiceUnavailable
		}
		if class := classifyStatus(apierr.StatusCode); class != ClassOther {
			return class
		}
		return classifyGeneric(err)
	}
	return classifyGeneric(err)
}

func (AnthropicClassifier) RetryAfter(err error) time.Duration {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		return retryAfterHeader(apierr.Response)
	}
	return 0
}
