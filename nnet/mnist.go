package nnet

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/pkg/errors"
)

// mnist dataset is 60000 train + 10000 test images of 28x28 grayscale digits
// in idx format, read from the mnist subdirectory under DataDir.

var mnistClasses = []string{"0", "1", "2", "3", "4", "5", "6", "7", "8", "9"}

type labelHeader struct{ Magic, Num uint32 }

type imageHeader struct{ Magic, Num, Height, Width uint32 }

func init() {
	Register("mnist", loadMNIST)
}

func loadMNIST() (map[string]Data, error) {
	train, err := loadMNISTData("train-images-idx3-ubyte", "train-labels-idx1-ubyte")
	if err != nil {
		return nil, err
	}
	test, err := loadMNISTData("t10k-images-idx3-ubyte", "t10k-labels-idx1-ubyte")
	if err != nil {
		return nil, err
	}
	return map[string]Data{"train": train, "test": test}, nil
}

func loadMNISTData(imageFile, labelFile string) (Data, error) {
	labels, err := readLabels(labelFile)
	if err != nil {
		return nil, err
	}
	input, h, w, err := readImages(imageFile)
	if err != nil {
		return nil, err
	}
	if len(input) != len(labels)*h*w {
		return nil, errors.Errorf("mnist: %d images for %d labels", len(input)/(h*w), len(labels))
	}
	return NewData([]int{1, h, w}, mnistClasses, input, labels), nil
}

func readImages(name string) (input []float32, h, w int, err error) {
	pathName := path.Join(DataDir, "mnist", name)
	f, err := os.Open(pathName)
	if err != nil {
		return nil, 0, 0, errors.Wrap(err, "mnist images")
	}
	defer f.Close()
	var head imageHeader
	if err = binary.Read(f, binary.BigEndian, &head); err != nil {
		return nil, 0, 0, errors.Wrap(err, "mnist images")
	}
	if head.Magic != 2051 {
		return nil, 0, 0, errors.Errorf("mnist: bad magic %x in %s", head.Magic, name)
	}
	n, h, w := int(head.Num), int(head.Height), int(head.Width)
	fmt.Printf("read %d %dx%d images from %s\n", n, h, w, name)
	pixels := make([]uint8, n*h*w)
	if _, err = io.ReadFull(f, pixels); err != nil {
		return nil, 0, 0, errors.Wrap(err, "mnist images")
	}
	input = make([]float32, n*h*w)
	for i, pix := range pixels {
		input[i] = float32(pix) / 255
	}
	return input, h, w, nil
}

func readLabels(name string) (labels []int32, err error) {
	pathName := path.Join(DataDir, "mnist", name)
	f, err := os.Open(pathName)
	if err != nil {
		return nil, errors.Wrap(err, "mnist labels")
	}
	defer f.Close()
	var head labelHeader
	if err = binary.Read(f, binary.BigEndian, &head); err != nil {
		return nil, errors.Wrap(err, "mnist labels")
	}
	if head.Magic != 2049 {
		return nil, errors.Errorf("mnist: bad magic %x in %s", head.Magic, name)
	}
	fmt.Printf("read %d labels from %s\n", head.Num, name)
	bytes := make([]byte, head.Num)
	if _, err = io.ReadFull(f, bytes); err != nil {
		return nil, errors.Wrap(err, "mnist labels")
	}
	labels = make([]int32, head.Num)
	for i, label := range bytes {
		labels[i] = int32(label)
	}
	return labels, nil
}
