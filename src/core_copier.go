package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultMaxRetries = 3

// backoffSleep is overridable so tests stay fast
var backoffSleep = time.Sleep

// copyFileWithRetry copies one file, preserving its timestamps so the
// destination reflects capture provenance rather than import time. Failures
// are classified into the fixed taxonomy; retryable ones back off
// exponentially (2^attempt seconds) up to maxRetries.
func copyFileWithRetry(src, dst string, maxRetries int) CopyOutcome {
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = copyFilePreserving(src, dst)
		if lastErr == nil {
			return CopyOutcome{Success: true}
		}

		errType, canRetry := classifyCopyError(lastErr)
		if !canRetry || attempt >= maxRetries {
			return CopyOutcome{
				Success: false,
				Error: &ImportError{
					File:       filepath.Base(src),
					Message:    lastErr.Error(),
					Type:       errType,
					CanRetry:   canRetry,
					RetryCount: attempt,
				},
			}
		}

		backoffSleep(time.Duration(1<<attempt) * time.Second)
	}
}

// copyFilePreserving copies src to dst atomically (temp file then rename)
// and carries over the original access/modification timestamps
func copyFilePreserving(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	srcInfo, err := in.Stat()
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	tmp := dst + ".tmp"
	out, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, srcInfo.Mode())
	if err != nil {
		return fmt.Errorf("create target: %w", err)
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close target: %w", err)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename into place: %w", err)
	}

	mtime := srcInfo.ModTime()
	_ = os.Chtimes(dst, mtime, mtime)

	return nil
}

// access is an existence probe, also used standalone by UI-driven manual
// retry when re-resolving a target name
func access(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// classifyCopyError sorts a failure into the error taxonomy by message
// substrings. The underlying copy primitive does not guarantee structured
// error values across platforms, so text matching is the portable option.
func classifyCopyError(err error) (ErrorType, bool) {
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "permission denied"),
		strings.Contains(msg, "access is denied"),
		strings.Contains(msg, "operation not permitted"):
		return ErrPermission, true
	case strings.Contains(msg, "no space left"),
		strings.Contains(msg, "disk full"),
		strings.Contains(msg, "not enough space"):
		return ErrDiskSpace, false
	case strings.Contains(msg, "file name too long"),
		strings.Contains(msg, "path too long"):
		return ErrPathTooLong, false
	case strings.Contains(msg, "input/output error"),
		strings.Contains(msg, "corrupt"),
		strings.Contains(msg, "bad file descriptor"):
		// Could be a transient read glitch, worth another attempt
		return ErrFileCorrupted, true
	default:
		return ErrUnknown, true
	}
}
