package types_test

import (
	"testing"

	types "github.com/okian/btcguess/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRequestValidation(t *testing.T) {
	Convey("Given API request bodies", t, func() {
		Convey("When a sign-up request lacks fields", func() {
			So(types.SignUpRequest{}.Validate(), ShouldNotBeNil)
			So(types.SignUpRequest{Username: "a@b.co"}.Validate(), ShouldNotBeNil)
			So(types.SignUpRequest{Username: "a@b.co", Password: "x"}.Validate(), ShouldBeNil)
		})

		Convey("When a sign-in request lacks fields", func() {
			So(types.SignInRequest{Username: "  ", Password: "x"}.Validate(), ShouldNotBeNil)
			So(types.SignInRequest{Username: "a@b.co", Password: "x"}.Validate(), ShouldBeNil)
		})

		Convey("When a confirm request lacks a code", func() {
			So(types.ConfirmRequest{Username: "a@b.co"}.Validate(), ShouldNotBeNil)
			So(types.ConfirmRequest{Username: "a@b.co", Code: "123456"}.Validate(), ShouldBeNil)
		})

		Convey("When a guess request names a direction", func() {
			So(types.GuessRequest{Direction: "up"}.Validate(), ShouldBeNil)
			So(types.GuessRequest{Direction: "DOWN"}.Validate(), ShouldBeNil)
			So(types.GuessRequest{Direction: "sideways"}.Validate(), ShouldNotBeNil)
			So(types.GuessRequest{}.Validate(), ShouldNotBeNil)
		})
	})
}
