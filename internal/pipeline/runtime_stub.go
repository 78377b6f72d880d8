//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

func newTransformer(icons IconDefaults) (Transformer, error) {
	return stdlibTransformer{icons: icons}, nil
}
