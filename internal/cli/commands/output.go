package commands

import (
	"fmt"
	"io"

	"github.com/tornermarton/nest-api/internal/web/response"
)

// printDocument writes doc as indented JSON
func printDocument(w io.Writer, doc interface{}) error {
	_, err := response.Render(w, doc)
	return err
}

// printError writes the error document of err and returns an error
// carrying its status so the process exits non-zero
func printError(w io.Writer, self string, err error) error {
	status, rerr := response.Render(w, response.FromError(self, err))
	if rerr != nil {
		return rerr
	}
	return fmt.Errorf("%d: %w", status, err)
}

// printNotFound writes a 404 document for a missing resource
func printNotFound(w io.Writer, self, typ, id string) error {
	if _, err := response.Render(w, response.NotFound(self, fmt.Sprintf("%s %s does not exist", typ, id))); err != nil {
		return err
	}
	return fmt.Errorf("%s %s not found", typ, id)
}
