package gen

func floorDiv(a, b int) int {
	// b > 0
	q := a / b
	r := a % b
	if r < 0 {
		q--
	}
	return q
}

func mod(a, b int) int {
	// b > 0
	m := a % b
	if m < 0 {
		m += b
	}
	return m
}

func mix64(z uint64) uint64 {
	z += 0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

func hash2(seed int64, x, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

func hash3(seed int64, x, y, z int) uint64 {
	ux := uint64(uint32(int32(x)))
	uy := uint64(uint32(int32(y)))
	uz := uint64(uint32(int32(z)))
	v := uint64(seed) ^ (ux * 0x9e3779b97f4a7c15) ^ (uy * 0xc2b2ae3d27d4eb4f) ^ (uz * 0xbf58476d1ce4e5b9)
	return mix64(v)
}

// valueNoise is bilinear interpolation of hashed lattice values, smoothstepped.
// Returns [0,1].
func valueNoise(seed int64, x, z, grid int) float64 {
	gx, gz := floorDiv(x, grid), floorDiv(z, grid)
	fx := smooth(float64(mod(x, grid)) / float64(grid))
	fz := smooth(float64(mod(z, grid)) / float64(grid))

	v00 := unit(hash2(seed, gx, gz))
	v10 := unit(hash2(seed, gx+1, gz))
	v01 := unit(hash2(seed, gx, gz+1))
	v11 := unit(hash2(seed, gx+1, gz+1))

	a := v00 + (v10-v00)*fx
	b := v01 + (v11-v01)*fx
	return a + (b-a)*fz
}

func unit(h uint64) float64 {
	return float64(h%1024) / 1023
}

func smooth(t float64) float64 {
	return t * t * (3 - 2*t)
}

// inCluster reports whether (x, z) falls in a disc of radius centred somewhere
// in a grid cell that rolled under probPermille.
func inCluster(seed int64, x, z, grid, radius int, probPermille uint64) bool {
	if grid <= 0 || radius <= 0 || probPermille == 0 {
		return false
	}
	gx := floorDiv(x, grid)
	gz := floorDiv(z, grid)
	r2 := radius * radius

	for dz := -1; dz <= 1; dz++ {
		for dx := -1; dx <= 1; dx++ {
			cgx := gx + dx
			cgz := gz + dz
			h := hash2(seed, cgx, cgz)
			if h%1000 >= probPermille {
				continue
			}
			ox := int((h >> 10) % uint64(grid))
			oz := int((h >> 20) % uint64(grid))
			ddx := x - (cgx*grid + ox)
			ddz := z - (cgz*grid + oz)
			if ddx*ddx+ddz*ddz <= r2 {
				return true
			}
		}
	}
	return false
}
