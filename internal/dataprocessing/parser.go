package dataprocessing

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	apperrors "tickoutlier/internal/errors"
	"tickoutlier/pkg/contracts/domain"
)

// tickFields is the column count of a tick file: ID, Timestamp, Price
const tickFields = 3

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ReadTickFile loads a whole tick file. The file has no header row. An empty
// file is a DATA_QUALITY error, any malformed row a PARSING error.
func ReadTickFile(path, exchange string) (*domain.TickFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewParsingError("failed to read tick file", err).
			WithContext("path", path)
	}

	ticks, err := ParseTicks(bytes.NewReader(bytes.TrimPrefix(content, utf8BOM)))
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			appErr.WithContext("path", path).WithContext("exchange", exchange)
		}
		return nil, err
	}

	return &domain.TickFile{
		Exchange: exchange,
		Path:     path,
		Ticks:    ticks,
	}, nil
}

// ParseTicks reads headerless three-column tick rows in order.
// Blank lines are ignored.
func ParseTicks(r io.Reader) ([]domain.Tick, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = tickFields
	reader.ReuseRecord = true

	var ticks []domain.Tick
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("malformed tick row",
				fmt.Errorf("%w: %v", apperrors.ErrMalformedRow, err))
		}

		line, _ := reader.FieldPos(0)
		tick, err := parseTick(record)
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("malformed tick row on line %d", line), err).
				WithContext("line", line)
		}
		ticks = append(ticks, tick)
	}

	if len(ticks) == 0 {
		return nil, apperrors.NewDataQualityError("tick file has no rows", apperrors.ErrEmptyFile)
	}

	return ticks, nil
}

// parseTick converts one record. ID and Timestamp are kept verbatim. The ID
// names the outlier report file, so IDs that cannot be a file name are
// rejected here rather than at write time.
func parseTick(record []string) (domain.Tick, error) {
	id := record[0]
	if strings.TrimSpace(id) == "" {
		return domain.Tick{}, fmt.Errorf("%w: tick id is empty", apperrors.ErrMalformedRow)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, "/\\\x00") {
		return domain.Tick{}, fmt.Errorf("%w: tick id %q cannot name a report file", apperrors.ErrMalformedRow, id)
	}

	raw := strings.TrimSpace(record[2])
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return domain.Tick{}, fmt.Errorf("%w: price %q is not a number", apperrors.ErrMalformedRow, raw)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return domain.Tick{}, fmt.Errorf("%w: price %q is not finite", apperrors.ErrMalformedRow, raw)
	}

	return domain.Tick{
		ID:        id,
		Timestamp: record[1],
		Price:     price,
	}, nil
}
