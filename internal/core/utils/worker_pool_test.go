package utils_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"ledger-ner/internal/core/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInPool(t *testing.T) {
	worker := func(i int) (string, error) {
		if i%4 == 3 {
			time.Sleep(time.Duration(10-i) * time.Millisecond)
			return "", fmt.Errorf("error")
		}
		return fmt.Sprintf("%d-%d", i, i), nil
	}

	queue := make(chan int, 10)
	for i := 0; i < 10; i++ {
		queue <- i
	}
	close(queue)

	output := make(chan utils.CompletedTask[string], 10)
	utils.RunInPool(worker, queue, output, 5)

	success, errors := 0, 0
	for result := range output {
		if result.Error != nil {
			errors++
		} else {
			success++
		}
	}

	assert.Equal(t, 8, success)
	assert.Equal(t, 2, errors)
}

func TestRunInPoolEmptyQueue(t *testing.T) {
	queue := make(chan int)
	close(queue)

	output := make(chan utils.CompletedTask[int])
	utils.RunInPool(func(i int) (int, error) { return i, nil }, queue, output, 4)

	_, ok := <-output
	assert.False(t, ok)
}

func TestMapInPoolKeepsOrder(t *testing.T) {
	items := []string{"beli semen", "jual pasir", "token listrik", "kopi"}
	out, err := utils.MapInPool(items, func(s string) (string, error) {
		time.Sleep(time.Duration(len(s)) * time.Millisecond)
		return strings.ToUpper(s), nil
	}, 3)

	require.NoError(t, err)
	assert.Equal(t, []string{"BELI SEMEN", "JUAL PASIR", "TOKEN LISTRIK", "KOPI"}, out)
}

func TestMapInPoolError(t *testing.T) {
	_, err := utils.MapInPool([]int{1, 2, 3}, func(i int) (int, error) {
		if i == 2 {
			return 0, fmt.Errorf("bad item %d", i)
		}
		return i, nil
	}, 2)
	assert.EqualError(t, err, "bad item 2")
}
