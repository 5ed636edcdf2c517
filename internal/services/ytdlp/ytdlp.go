package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"autosplit/internal/services"
)

// DefaultFormat selects the best single file with audio and video.
const DefaultFormat = "b"

var totalFragmentsPattern = regexp.MustCompile(`Total fragments: (\d+)`)

// Result summarises one download invocation.
type Result struct {
	TotalFragments int
	HasFragments   bool
	Lines          int
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec services.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithFormat overrides the format selector passed to -f.
func WithFormat(format string) Option {
	return func(c *Client) {
		if format = strings.TrimSpace(format); format != "" {
			c.format = format
		}
	}
}

// WithExtraArgs appends arguments ahead of the URL.
func WithExtraArgs(args []string) Option {
	return func(c *Client) {
		c.extraArgs = append([]string(nil), args...)
	}
}

// Client wraps yt-dlp invocations against a live or growing source.
type Client struct {
	binary    string
	format    string
	extraArgs []string
	exec      services.Executor
}

// New constructs a yt-dlp client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("yt-dlp binary required")
	}
	client := &Client{
		binary: binary,
		format: DefaultFormat,
		exec:   services.CommandExecutor{},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Download runs yt-dlp once in continue mode, writing to outputTemplate
// (e.g. "/downloads/stream.%(ext)s"). Every output line is copied to
// transcript when non-nil. The most recent "Total fragments" count is
// returned even when the tool exits with an error.
func (c *Client) Download(ctx context.Context, url, outputTemplate string, transcript io.Writer) (Result, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ytdlp", "download", "source url required", nil)
	}
	if strings.TrimSpace(outputTemplate) == "" {
		return Result{}, services.Wrap(services.ErrValidation, "ytdlp", "download", "output template required", nil)
	}

	var result Result
	err := c.exec.Run(ctx, c.binary, c.buildArgs(url, outputTemplate), func(line string) {
		result.Lines++
		if transcript != nil {
			_, _ = io.WriteString(transcript, line+"\n")
		}
		if n, ok := ParseTotalFragments(line); ok {
			result.TotalFragments = n
			result.HasFragments = true
		}
	})
	if err != nil {
		return result, services.Wrap(services.ErrExternalTool, "ytdlp", "download", fmt.Sprintf("%s exited", c.binary), err)
	}
	return result, nil
}

func (c *Client) buildArgs(url, outputTemplate string) []string {
	args := []string{
		"-f", c.format,
		"--verbose",
		"--continue",
		"--hls-prefer-native",
		"--parse-meta", ":(?P<is_live>)",
		"--fixup", "never",
	}
	args = append(args, c.extraArgs...)
	args = append(args, url, "-o", outputTemplate)
	return args
}

// ParseTotalFragments extracts N from a "Total fragments: N" line.
func ParseTotalFragments(line string) (int, bool) {
	match := totalFragmentsPattern.FindStringSubmatch(line)
	if len(match) != 2 {
		return 0, false
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	return n, true
}
