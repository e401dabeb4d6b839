// Package sut talks to the system under test: a ClickHouse-style
// service with an account subsystem driven by SQL DDL.
//
// Two transports exist. ExecConnector shells out to the service's
// command-line client; Memory is an in-process model of the account
// subsystem with the same statement surface and error texts, used for
// offline campaigns, shrink replays, and tests. Everything above the
// Transport interface is transport-agnostic.
package sut

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/prowlkit/prowl/internal/account"
)

// Row is one record of a tabular result, keyed by column name.
type Row map[string]string

// Transport executes statements under one fixed session identity.
type Transport interface {
	// Execute runs a statement and returns its raw output. A rejection
	// by the service is a *ServiceError; a failure to reach the service
	// is a *TransportError.
	Execute(ctx context.Context, stmt string) (string, error)

	// ExecuteTabular runs a statement whose output is
	// TabSeparatedWithNames and parses it into rows.
	ExecuteTabular(ctx context.Context, stmt string) ([]Row, error)
}

// Connector opens sessions. Each session carries the identity of one
// principal; the service authenticates it on every statement.
type Connector interface {
	Session(p account.Principal) Transport
}

// parseTabular decodes TabSeparatedWithNames output: a header line of
// column names, then one line per row.
func parseTabular(raw string) ([]Row, error) {
	r := csv.NewReader(bytes.NewReader([]byte(raw)))
	r.Comma = '\t'
	r.LazyQuotes = true
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("parse tabular header: %w", err)
	}

	var rows []Row
	for {
		record, err := r.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("parse tabular row %d: %w", len(rows)+1, err)
		}
		row := make(Row, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
	}
}
