// SPDX-License-Identifier: GPL-2.0-or-later

// Package math holds scalar helpers shared by the culling and query code.
package math

import "math"

// Deg2Rad converts degrees into radians
func Deg2Rad(a float32) float32 {
	return a * math.Pi / 180
}
