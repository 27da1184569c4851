package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"strings"

	"github.com/skinguardian/client/types"
)

const (
	// PartImage is the multipart field carrying the raw lesion image.
	PartImage = "image"
	// PartMetadata is the multipart field carrying the JSON metadata.
	PartMetadata = "metadata"

	metadataFilename   = "metadata.json"
	defaultImageName   = "image"
	defaultContentType = "application/octet-stream"
)

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// EncodeDiagnosisBody builds the two-part diagnosis request body: the image
// first, with its original content type, then the metadata as
// application/json. It returns the body and its Content-Type header.
func EncodeDiagnosisBody(localization types.Localization, image types.ImageFile) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	filename := image.Filename
	if strings.TrimSpace(filename) == "" {
		filename = defaultImageName
	}
	contentType := image.ContentType
	if strings.TrimSpace(contentType) == "" {
		contentType = defaultContentType
	}

	imagePart, err := writer.CreatePart(partHeader(PartImage, filename, contentType))
	if err != nil {
		return nil, "", err
	}
	if _, err := imagePart.Write(image.Data); err != nil {
		return nil, "", err
	}

	metadata, err := json.Marshal(types.DiagnosisMetadata{Localization: localization})
	if err != nil {
		return nil, "", err
	}
	metadataPart, err := writer.CreatePart(partHeader(PartMetadata, metadataFilename, "application/json"))
	if err != nil {
		return nil, "", err
	}
	if _, err := metadataPart.Write(metadata); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

func partHeader(field, filename, contentType string) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition",
		fmt.Sprintf(`form-data; name="%s"; filename="%s"`, quoteEscaper.Replace(field), quoteEscaper.Replace(filename)))
	h.Set("Content-Type", contentType)
	return h
}
