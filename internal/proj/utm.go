// Package proj provides WGS84 to UTM projections compatible with
// github.com/paulmach/orb/project. Geometry regularization runs in metric
// space, so AOI coordinates are projected into the UTM zone containing the
// data and back again afterwards.
package proj

import (
	"math"

	"github.com/paulmach/orb"
)

// WGS84 ellipsoid and transverse Mercator constants.
const (
	semiMajor    = 6378137.0
	flattening   = 1 / 298.257223563
	scaleFactor  = 0.9996
	falseEasting = 500000.0
	// Southern hemisphere zones offset northings to stay positive.
	falseNorthingSouth = 10000000.0
)

var (
	e2  = flattening * (2 - flattening)
	ep2 = e2 / (1 - e2)
	e1  = (1 - math.Sqrt(1-e2)) / (1 + math.Sqrt(1-e2))
)

// UTM identifies a single UTM zone and hemisphere. All points projected
// through one UTM value use that zone's central meridian, so geometry spread
// across a zone boundary still projects consistently, at slightly reduced
// accuracy far from the meridian.
type UTM struct {
	zone  int
	south bool
}

// For picks the UTM zone containing the given WGS84 point, typically the
// centroid of the working geometry.
func For(p orb.Point) UTM {
	zone := int((p[0]+180)/6) + 1
	if zone < 1 {
		zone = 1
	}
	if zone > 60 {
		zone = 60
	}
	return UTM{zone: zone, south: p[1] < 0}
}

// Zone returns the UTM zone number, 1 through 60.
func (u UTM) Zone() int {
	return u.zone
}

// EPSG returns the EPSG code of the zone, 326xx north of the equator and
// 327xx south of it.
func (u UTM) EPSG() int {
	if u.south {
		return 32700 + u.zone
	}
	return 32600 + u.zone
}

func (u UTM) centralMeridian() float64 {
	return float64((u.zone-1)*6 - 180 + 3)
}

// ToUTM returns a projection from WGS84 degrees to UTM meters.
func (u UTM) ToUTM() orb.Projection {
	lon0 := u.centralMeridian() * math.Pi / 180
	fn := 0.0
	if u.south {
		fn = falseNorthingSouth
	}

	return func(p orb.Point) orb.Point {
		lat := p[1] * math.Pi / 180
		lon := p[0] * math.Pi / 180

		sinLat := math.Sin(lat)
		cosLat := math.Cos(lat)
		tanLat := sinLat / cosLat

		n := semiMajor / math.Sqrt(1-e2*sinLat*sinLat)
		t := tanLat * tanLat
		c := ep2 * cosLat * cosLat
		a := (lon - lon0) * cosLat
		m := meridionalArc(lat)

		a2 := a * a
		a3 := a2 * a
		a4 := a3 * a
		a5 := a4 * a
		a6 := a5 * a

		x := falseEasting + scaleFactor*n*(a+
			(1-t+c)*a3/6+
			(5-18*t+t*t+72*c-58*ep2)*a5/120)
		y := fn + scaleFactor*(m+n*tanLat*(a2/2+
			(5-t+9*c+4*c*c)*a4/24+
			(61-58*t+t*t+600*c-330*ep2)*a6/720))

		return orb.Point{x, y}
	}
}

// ToWGS84 returns the inverse projection from UTM meters back to degrees.
func (u UTM) ToWGS84() orb.Projection {
	lon0 := u.centralMeridian() * math.Pi / 180
	fn := 0.0
	if u.south {
		fn = falseNorthingSouth
	}

	return func(p orb.Point) orb.Point {
		x := p[0] - falseEasting
		y := p[1] - fn

		m := y / scaleFactor
		mu := m / (semiMajor * (1 - e2/4 - 3*e2*e2/64 - 5*e2*e2*e2/256))

		phi1 := mu +
			(3*e1/2-27*e1*e1*e1/32)*math.Sin(2*mu) +
			(21*e1*e1/16-55*e1*e1*e1*e1/32)*math.Sin(4*mu) +
			(151*e1*e1*e1/96)*math.Sin(6*mu) +
			(1097*e1*e1*e1*e1/512)*math.Sin(8*mu)

		sinPhi1 := math.Sin(phi1)
		cosPhi1 := math.Cos(phi1)
		tanPhi1 := sinPhi1 / cosPhi1

		c1 := ep2 * cosPhi1 * cosPhi1
		t1 := tanPhi1 * tanPhi1
		denom := 1 - e2*sinPhi1*sinPhi1
		n1 := semiMajor / math.Sqrt(denom)
		r1 := semiMajor * (1 - e2) / (denom * math.Sqrt(denom))
		d := x / (n1 * scaleFactor)

		d2 := d * d
		d3 := d2 * d
		d4 := d3 * d
		d5 := d4 * d
		d6 := d5 * d

		lat := phi1 - (n1*tanPhi1/r1)*(d2/2-
			(5+3*t1+10*c1-4*c1*c1-9*ep2)*d4/24+
			(61+90*t1+298*c1+45*t1*t1-252*ep2-3*c1*c1)*d6/720)
		lon := lon0 + (d-
			(1+2*t1+c1)*d3/6+
			(5-2*c1+28*t1-3*c1*c1+8*ep2+24*t1*t1)*d5/120)/cosPhi1

		return orb.Point{lon * 180 / math.Pi, lat * 180 / math.Pi}
	}
}

// meridionalArc computes the ellipsoidal arc length from the equator to the
// given latitude in radians.
func meridionalArc(lat float64) float64 {
	e4 := e2 * e2
	e6 := e4 * e2
	return semiMajor * ((1-e2/4-3*e4/64-5*e6/256)*lat -
		(3*e2/8+3*e4/32+45*e6/1024)*math.Sin(2*lat) +
		(15*e4/256+45*e6/1024)*math.Sin(4*lat) -
		(35*e6/3072)*math.Sin(6*lat))
}
