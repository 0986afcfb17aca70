// services/power/platform/errors.go
package platform

import "propcore-go/errcode"

func errUnknownBank(bank string) error {
	return &errcode.E{C: errcode.UnknownBank, Op: "platform", Msg: "bank " + bank}
}
