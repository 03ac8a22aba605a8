package common

/*
https://en.wikipedia.org/wiki/Decimal_degrees

places 	degrees 	at equator
5 	0.00001 	1.11 m 	individual trees, houses
6 	0.000001 	111 mm 	individual people
*/

const (
	// GPSPrecision5 is the precision for individual trees, houses
	GPSPrecision5 = 5
	// GPSPrecision6 is the precision for individual people; the popup precision of the map front ends.
	GPSPrecision6 = 6
)
