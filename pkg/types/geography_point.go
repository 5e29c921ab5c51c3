package types

import (
	"bytes"
	"database/sql/driver"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	sridWGS84    = 4326
	wkbPoint     = 1
	ewkbSRIDFlag = 0x20000000
	// byte order + type + two float64 coordinates
	minPointWKB = 1 + 4 + 16
)

var errNotPoint = errors.New("geography: not a point")

// GeographyPoint is a WGS84 coordinate stored in a PostGIS geography(Point)
// column. It writes EWKT and reads EWKT, hex EWKB or raw WKB.
type GeographyPoint struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (g GeographyPoint) Validate() error {
	switch {
	case math.IsNaN(g.Lat) || math.Abs(g.Lat) > 90:
		return fmt.Errorf("latitude %v out of range", g.Lat)
	case math.IsNaN(g.Lng) || math.Abs(g.Lng) > 180:
		return fmt.Errorf("longitude %v out of range", g.Lng)
	}
	return nil
}

// String renders EWKT, longitude first.
func (g GeographyPoint) String() string {
	return "SRID=" + strconv.Itoa(sridWGS84) + ";POINT(" +
		strconv.FormatFloat(g.Lng, 'f', -1, 64) + " " +
		strconv.FormatFloat(g.Lat, 'f', -1, 64) + ")"
}

func (g GeographyPoint) Value() (driver.Value, error) {
	return g.String(), nil
}

func (g *GeographyPoint) Scan(value any) error {
	var (
		p   GeographyPoint
		err error
	)
	switch v := value.(type) {
	case nil:
	case string:
		p, err = parsePoint(v)
	case []byte:
		if len(v) > 0 && v[0] <= 1 {
			p, err = decodeWKB(v)
		} else {
			p, err = parsePoint(string(v))
		}
	case fmt.Stringer:
		p, err = parsePoint(v.String())
	default:
		err = fmt.Errorf("geography: cannot scan %T", value)
	}
	if err != nil {
		return err
	}
	*g = p
	return nil
}

// parsePoint handles the textual forms: hex encoded EWKB or (E)WKT.
func parsePoint(raw string) (GeographyPoint, error) {
	raw = strings.TrimSpace(raw)
	if looksHex(raw) {
		b, err := hex.DecodeString(raw)
		if err != nil {
			return GeographyPoint{}, fmt.Errorf("geography: %w", err)
		}
		return decodeWKB(b)
	}

	if head, rest, ok := strings.Cut(raw, ";"); ok && strings.HasPrefix(strings.ToUpper(head), "SRID=") {
		raw = strings.TrimSpace(rest)
	}
	const prefix = "POINT("
	if len(raw) < len(prefix) || !strings.EqualFold(raw[:len(prefix)], prefix) || !strings.HasSuffix(raw, ")") {
		return GeographyPoint{}, fmt.Errorf("%w: %q", errNotPoint, raw)
	}
	coords := strings.Fields(raw[len(prefix) : len(raw)-1])
	if len(coords) != 2 {
		return GeographyPoint{}, fmt.Errorf("%w: %q", errNotPoint, raw)
	}
	lng, err := strconv.ParseFloat(coords[0], 64)
	if err != nil {
		return GeographyPoint{}, fmt.Errorf("geography: longitude: %w", err)
	}
	lat, err := strconv.ParseFloat(coords[1], 64)
	if err != nil {
		return GeographyPoint{}, fmt.Errorf("geography: latitude: %w", err)
	}
	return GeographyPoint{Lat: lat, Lng: lng}, nil
}

func looksHex(s string) bool {
	if len(s) < 2*minPointWKB || len(s)%2 != 0 {
		return false
	}
	return strings.Trim(s, "0123456789abcdefABCDEF") == ""
}

// decodeWKB reads a little or big endian point, with or without the EWKB
// SRID extension.
func decodeWKB(b []byte) (GeographyPoint, error) {
	if len(b) < minPointWKB {
		return GeographyPoint{}, errors.New("geography: wkb too short")
	}
	var order binary.ByteOrder
	switch b[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return GeographyPoint{}, fmt.Errorf("geography: invalid byte order %d", b[0])
	}

	r := bytes.NewReader(b[1:])
	var kind uint32
	if err := binary.Read(r, order, &kind); err != nil {
		return GeographyPoint{}, fmt.Errorf("geography: %w", err)
	}
	if kind&ewkbSRIDFlag != 0 {
		var srid uint32
		if err := binary.Read(r, order, &srid); err != nil {
			return GeographyPoint{}, fmt.Errorf("geography: %w", err)
		}
	}
	if kind&^ewkbSRIDFlag != wkbPoint {
		return GeographyPoint{}, fmt.Errorf("%w: wkb type %d", errNotPoint, kind&^ewkbSRIDFlag)
	}
	var xy [2]float64
	if err := binary.Read(r, order, &xy); err != nil {
		return GeographyPoint{}, fmt.Errorf("geography: %w", err)
	}
	return GeographyPoint{Lng: xy[0], Lat: xy[1]}, nil
}
