// Package sheets serves the journal workbook from a Google spreadsheet.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"journal_backend/internal/failure"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

type Config struct {
	CredentialsFile string
	SpreadsheetID   string
	Worksheet       string
}

// Client is a workbook.Backend over one worksheet of a fixed spreadsheet.
// Addresses are prefixed with the worksheet name.
type Client struct {
	service       *sheets.Service
	spreadsheetID string
	worksheet     string
}

// NewClient builds the Sheets service. CredentialsFile, when set, is a
// service account key; extra options follow it.
func NewClient(ctx context.Context, cfg Config, opts ...option.ClientOption) (*Client, error) {
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}
	service, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	return &Client{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		worksheet:     cfg.Worksheet,
	}, nil
}

func (c *Client) Name() string { return "sheets" }

// Identity is the spreadsheet id the client serves.
func (c *Client) Identity() string { return c.spreadsheetID }

func (c *Client) ReadRange(ctx context.Context, address string) ([][]any, error) {
	a1, err := c.a1(address)
	if err != nil {
		return nil, err
	}
	resp, err := c.service.Spreadsheets.Values.Get(c.spreadsheetID, a1).Context(ctx).Do()
	if err != nil {
		return nil, classify("read "+address, err)
	}
	log.Debug().Str("range", a1).Int("rows", len(resp.Values)).Msg("Range read")
	return resp.Values, nil
}

func (c *Client) WriteRange(ctx context.Context, address string, values [][]any) error {
	a1, err := c.a1(address)
	if err != nil {
		return err
	}
	valueRange := &sheets.ValueRange{
		Values: values,
	}

	_, err = c.service.Spreadsheets.Values.Update(c.spreadsheetID, a1, valueRange).
		ValueInputOption("USER_ENTERED").
		Context(ctx).
		Do()
	if err != nil {
		return classify("update "+address, err)
	}
	return nil
}

func (c *Client) ClearRange(ctx context.Context, address string) error {
	a1, err := c.a1(address)
	if err != nil {
		return err
	}
	_, err = c.service.Spreadsheets.Values.Clear(c.spreadsheetID, a1, &sheets.ClearValuesRequest{}).
		Context(ctx).
		Do()
	if err != nil {
		return classify("clear "+address, err)
	}
	return nil
}

// Locate fetches the spreadsheet's metadata to confirm it is reachable.
func (c *Client) Locate(ctx context.Context) error {
	if c.spreadsheetID == "" {
		return fmt.Errorf("SPREADSHEET_ID: %w", failure.ErrConfig)
	}
	_, err := c.service.Spreadsheets.Get(c.spreadsheetID).
		Fields("spreadsheetId").
		Context(ctx).
		Do()
	if err != nil {
		err = classify("locate spreadsheet", err)
		return fmt.Errorf("%w: %w", failure.ErrResolution, err)
	}
	return nil
}

func (c *Client) a1(address string) (string, error) {
	switch {
	case c.spreadsheetID == "":
		return "", fmt.Errorf("SPREADSHEET_ID: %w", failure.ErrConfig)
	case c.worksheet == "":
		return "", fmt.Errorf("EXCEL_WORKSHEET_NAME: %w", failure.ErrConfig)
	}
	return fmt.Sprintf("'%s'!%s", strings.ReplaceAll(c.worksheet, "'", "''"), address), nil
}

func classify(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		log.Error().
			Str("op", op).
			Int("status", apiErr.Code).
			Str("body", apiErr.Body).
			Msg("Sheets request rejected")
		return fmt.Errorf("%s: status %d: %s: %w", op, apiErr.Code, apiErr.Message, failure.ErrRemote)
	}
	return fmt.Errorf("%s: %w: %w", op, failure.ErrRemote, err)
}
