package ocr

import "context"

// MockExtractor returns a fixed text for any image. Err, when set, is
// returned instead.
type MockExtractor struct {
	Text string
	Err  error
}

// ExtractText returns the canned text.
func (m *MockExtractor) ExtractText(ctx context.Context, imagePath string) (string, error) {
	if m.Err != nil {
		return "", m.Err
	}
	return m.Text, nil
}
