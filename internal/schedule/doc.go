// Package schedule builds installment plans for savings projects.
//
// A plan splits a target amount into fixed installments spaced by a
// frequency unit starting at a given date. The last installment carries the
// remainder when the target is not an exact multiple of the installment.
package schedule
