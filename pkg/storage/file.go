package storage

import "os"

func createFile(path string) (*os.File, error) {
	return os.Create(path)
}

func openFile(path string) (*os.File, error) {
	return os.Open(path)
}
