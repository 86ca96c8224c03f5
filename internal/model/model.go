//-------------------------------------------------------------------------
//
// pgEdge Star Schema ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package model defines the records that flow through the star schema
// pipeline: raw sales transactions, dimension rows and fact rows.
package model

import (
	"fmt"
	"time"
)

// SalesRecord is one raw sales transaction as read from the source.
// Staged and filtered records share the same shape.
type SalesRecord struct {
	OrderID       int64
	OrderDate     Date
	CustomerID    int64
	CustomerName  string
	CustomerEmail string
	ProductID     int64
	ProductName   string
	RegionID      int64
	RegionName    string
	Country       string

	// Quantity is nil when the source row carried NULL.
	Quantity *int

	UnitPrice   float64
	TotalAmount float64
}

// Date is a calendar date without time of day or location.
// It is comparable and safe to use as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate parses a date in 2006-01-02 form.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// MustDate is like ParseDate but panics on error. Intended for tests and
// static tables.
func MustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Time returns the date as midnight UTC.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether d is the zero date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// DimensionRow is one row of a dimension table.
type DimensionRow[K comparable, A comparable] struct {
	// Key is the surrogate key, assigned from 1 within a build pass.
	Key int64

	// BusinessKey is the natural identifier taken from the source.
	BusinessKey K

	// Attrs holds the descriptive attributes of the entity.
	Attrs A
}

// CustomerAttrs describes a customer.
type CustomerAttrs struct {
	Name  string
	Email string
}

// ProductAttrs describes a product.
type ProductAttrs struct {
	Name string
}

// RegionAttrs describes a sales region.
type RegionAttrs struct {
	Name    string
	Country string
}

// NoAttrs is used by dimensions whose key is self-descriptive.
type NoAttrs struct{}

// Dimension row variants.
type (
	CustomerRow = DimensionRow[int64, CustomerAttrs]
	ProductRow  = DimensionRow[int64, ProductAttrs]
	RegionRow   = DimensionRow[int64, RegionAttrs]
	DateRow     = DimensionRow[Date, NoAttrs]
)

// FactRow is one resolved sales fact. A nil foreign key means the
// business key had no match in the corresponding dimension.
type FactRow struct {
	OrderID   int64
	Quantity  int
	UnitPrice float64
	Total     float64

	CustomerKey *int64
	ProductKey  *int64
	DateKey     *int64
	RegionKey   *int64
}

// Dimension names used in reports and counters.
const (
	DimCustomer = "customer"
	DimProduct  = "product"
	DimRegion   = "region"
	DimDate     = "date"
)

// DimensionNames lists every dimension in a stable order.
var DimensionNames = []string{DimCustomer, DimProduct, DimRegion, DimDate}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}
