// Package cryptoreader implements the two encryption schemes a ZIP entry's Flags can declare: traditional PKWARE
// "ZipCrypto" encryption and WinZip AES encryption (extra tag 0x9901). Neither scheme has a prior implementation in
// the corpus this module grew out of, so both are built directly from APPNOTE and the WinZip AES specification,
// following the same small-reader-wrapper shape the rest of this module uses for composing a content pipeline.
package cryptoreader

import "github.com/nguyengg/xzip/xzerr"

// NewInvalidPassword is a convenience constructor matching the xzerr taxonomy used by both schemes below.
func NewInvalidPassword() error {
	return &xzerr.InvalidPassword{}
}
