package preprocessing_test

import (
	"fmt"

	"github.com/YuminosukeSato/cropadvisor/preprocessing"
)

func ExampleLabelEncoder() {
	enc := preprocessing.NewLabelEncoder()

	codes, err := enc.FitTransform([]string{"rice", "maize", "rice", "chickpea"})
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(enc.Classes())
	fmt.Println(codes)

	labels, _ := enc.InverseTransform([]int{0, 2})
	fmt.Println(labels)
	// Output:
	// [chickpea maize rice]
	// [2 1 2 0]
	// [chickpea rice]
}
