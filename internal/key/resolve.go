package key

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
)

const (
	PublicKeyMarker  = "BEGIN PUBLIC KEY"
	PrivateKeyMarker = "BEGIN RSA PRIVATE KEY"
)

var (
	ErrKeyNotFound      = errors.New("key not found")
	ErrInvalidKeyFormat = errors.New("invalid key format")
)

// Source tells where a configured key reference points to.
type Source int

const (
	SourceInline Source = iota
	SourceFile
)

func (s Source) String() string {
	if s == SourceFile {
		return "file"
	}
	return "inline"
}

// Classify decides whether raw is PEM content (it carries marker) or a file path.
func Classify(raw, marker string) Source {
	if strings.Contains(raw, marker) {
		return SourceInline
	}
	return SourceFile
}

// Material is the normalized PEM text of the client's key pair.
type Material struct {
	PublicPEM  string
	PrivatePEM string
}

// LoadMaterial resolves the public and then the private key reference.
func LoadMaterial(publicRaw, privateRaw string) (Material, error) {
	public, err := Resolve(publicRaw, "PublicKey", PublicKeyMarker)
	if err != nil {
		return Material{}, err
	}
	private, err := Resolve(privateRaw, "PrivateKey", PrivateKeyMarker)
	if err != nil {
		return Material{}, err
	}
	return Material{PublicPEM: public, PrivatePEM: private}, nil
}

// Resolve turns a key reference into LF-only PEM text. raw is used as is when it
// contains marker, otherwise it is read from the file it names.
func Resolve(raw, label, marker string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("%w: %s must be PEM text or a path to a PEM file", ErrInvalidKeyFormat, label)
	}

	content := raw
	if Classify(raw, marker) == SourceFile {
		data, err := readKeyFile(raw, label, marker)
		if err != nil {
			return "", err
		}
		content = string(data)
	}

	return normalizeLineBreaks(content), nil
}

// readKeyFile reads the regular file at path. Every failure is ErrKeyNotFound and
// the message only quotes a short prefix of path.
func readKeyFile(path, label, marker string) ([]byte, error) {
	if strings.Contains(path, "-----BEGIN") {
		return nil, fmt.Errorf("%w: %s is PEM text without %q", ErrKeyNotFound, label, marker)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file %s: %s", ErrKeyNotFound, label, displayPath(path), pathErrorReason(err))
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s file %s is not a regular file", ErrKeyNotFound, label, displayPath(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s file %s: %s", ErrKeyNotFound, label, displayPath(path), pathErrorReason(err))
	}
	return data, nil
}

const maxDisplayPath = 64

// displayPath quotes the first line of path, cut to maxDisplayPath bytes.
func displayPath(path string) string {
	cut := len(path)
	if i := strings.IndexAny(path, "\r\n"); i >= 0 {
		cut = i
	}
	if i := strings.Index(path, `\n`); i >= 0 && i < cut {
		cut = i
	}
	cut = min(cut, maxDisplayPath)
	if cut < len(path) {
		return strconv.Quote(path[:cut] + "...")
	}
	return strconv.Quote(path)
}

// pathErrorReason drops the path an *fs.PathError would print.
func pathErrorReason(err error) string {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		return pathErr.Err.Error()
	}
	return err.Error()
}

// normalizeLineBreaks expands escaped \n and \r sequences and drops every carriage return.
func normalizeLineBreaks(content string) string {
	content = strings.ReplaceAll(content, `\n`, "\n")
	content = strings.ReplaceAll(content, `\r`, "\r")
	return strings.ReplaceAll(content, "\r", "")
}
