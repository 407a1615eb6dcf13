package presentation

import "github.com/pkg/browser"

// Open shows a rendered artifact with the desktop's default application.
func Open(path string) error {
	return browser.OpenFile(path)
}
