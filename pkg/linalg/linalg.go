// Package linalg provides small fixed-size vector and matrix value types
// used throughout the application.
package linalg

import (
	"math"
)

// Float covers the element types the pipeline computes with.
type Float interface {
	~float32 | ~float64
}

// Vec2 represents a 2D vector.
type Vec2[T Float] struct {
	X T `json:"x"`
	Y T `json:"y"`
}

// Add returns the sum of two vectors.
func (v Vec2[T]) Add(other Vec2[T]) Vec2[T] {
	return Vec2[T]{X: v.X + other.X, Y: v.Y + other.Y}
}

// Sub returns the difference of two vectors.
func (v Vec2[T]) Sub(other Vec2[T]) Vec2[T] {
	return Vec2[T]{X: v.X - other.X, Y: v.Y - other.Y}
}

// Scale returns the vector scaled by a factor.
func (v Vec2[T]) Scale(factor T) Vec2[T] {
	return Vec2[T]{X: v.X * factor, Y: v.Y * factor}
}

// Norm returns the Euclidean length of the vector.
func (v Vec2[T]) Norm() T {
	return T(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Mat2s represents a symmetric 2x2 matrix, stored as its three distinct
// entries.
type Mat2s[T Float] struct {
	XX T `json:"xx"`
	XY T `json:"xy"`
	YY T `json:"yy"`
}

// Add returns the sum of two matrices.
func (m Mat2s[T]) Add(other Mat2s[T]) Mat2s[T] {
	return Mat2s[T]{XX: m.XX + other.XX, XY: m.XY + other.XY, YY: m.YY + other.YY}
}

// Scale returns the matrix scaled by a factor.
func (m Mat2s[T]) Scale(factor T) Mat2s[T] {
	return Mat2s[T]{XX: m.XX * factor, XY: m.XY * factor, YY: m.YY * factor}
}

// Det returns the determinant.
func (m Mat2s[T]) Det() T {
	return m.XX*m.YY - m.XY*m.XY
}

// Inv returns the inverse matrix. The second return value is false if the
// matrix is singular within eps.
func (m Mat2s[T]) Inv(eps T) (Mat2s[T], bool) {
	d := m.Det()
	if abs(d) <= eps {
		return Mat2s[T]{}, false
	}
	return Mat2s[T]{XX: m.YY / d, XY: -m.XY / d, YY: m.XX / d}, true
}

// Eigenvalues returns the two eigenvalues in descending order. Symmetric
// matrices have real eigenvalues; the discriminant is clamped at zero to
// absorb rounding.
func (m Mat2s[T]) Eigenvalues() (T, T) {
	t := float64(m.XX + m.YY)
	d := float64(m.Det())

	disc := t*t - 4.0*d
	if disc < 0 {
		disc = 0
	}
	r := math.Sqrt(disc)

	return T((t + r) / 2), T((t - r) / 2)
}

// Eigen holds an eigen decomposition of a symmetric 2x2 matrix: W are the
// eigenvalues in descending order, V the corresponding unit eigenvectors.
type Eigen[T Float] struct {
	W [2]T
	V [2]Vec2[T]
}

// Eigenvectors returns the full eigen decomposition. For each eigenvalue
// the eigenvector solves (M - lambda*I) v = 0; when the off-diagonal entry
// vanishes the matrix is already diagonal and the axes are returned.
func (m Mat2s[T]) Eigenvectors() Eigen[T] {
	ew1, ew2 := m.Eigenvalues()

	var e Eigen[T]
	e.W = [2]T{ew1, ew2}

	if m.XY == 0 {
		if m.XX >= m.YY {
			e.V[0] = Vec2[T]{X: 1, Y: 0}
			e.V[1] = Vec2[T]{X: 0, Y: 1}
		} else {
			e.V[0] = Vec2[T]{X: 0, Y: 1}
			e.V[1] = Vec2[T]{X: 1, Y: 0}
		}
		return e
	}

	for i, ew := range e.W {
		v := Vec2[T]{X: ew - m.YY, Y: m.XY}
		n := v.Norm()
		if n > 0 {
			v = v.Scale(1 / n)
		}
		e.V[i] = v
	}

	return e
}

// QuadForm evaluates the quadratic form x^T M x.
func (m Mat2s[T]) QuadForm(x Vec2[T]) T {
	return m.XX*x.X*x.X + 2*m.XY*x.X*x.Y + m.YY*x.Y*x.Y
}

func abs[T Float](v T) T {
	if v < 0 {
		return -v
	}
	return v
}
