//go:build !govips || !cgo

package encode

func Startup() error {
	return nil
}

func Shutdown() {}

func newEncoder() (Encoder, error) {
	return stdlibEncoder{}, nil
}
