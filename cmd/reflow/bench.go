package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reflow-dev/reflow/pkg/reactive"
)

type benchResult struct {
	shape    string
	cells    int
	writes   int
	elapsed  time.Duration
	perWrite time.Duration
}

func benchCmd() *cobra.Command {
	var (
		writes int
		depth  int
		width  int
		shape  string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark propagation over common graph shapes",
		Long: `Run write/propagate cycles over a generated cell graph and
report throughput. Shapes:

  chain   - a linear pipeline of derived cells
  diamond - repeated split/join diamonds
  fanout  - one source read by many independent derived cells
  all     - every shape in sequence`,
		RunE: func(cmd *cobra.Command, args []string) error {
			shapes := []string{"chain", "diamond", "fanout"}
			if shape != "all" {
				shapes = []string{shape}
			}
			for _, sh := range shapes {
				res, err := runBench(sh, writes, depth, width)
				if err != nil {
					return err
				}
				fmt.Printf("%-8s %5d cells  %7d writes  %10s total  %8s/write\n",
					res.shape, res.cells, res.writes,
					res.elapsed.Round(time.Microsecond),
					res.perWrite.Round(time.Nanosecond))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&writes, "writes", "n", 10000, "Write/propagate cycles per shape")
	cmd.Flags().IntVarP(&depth, "depth", "d", 64, "Graph depth (chain, diamond)")
	cmd.Flags().IntVarP(&width, "width", "w", 256, "Fanout width")
	cmd.Flags().StringVar(&shape, "shape", "all", "Graph shape: chain, diamond, fanout, all")

	return cmd
}

func runBench(shape string, writes, depth, width int) (benchResult, error) {
	s := reactive.NewStore()
	defer s.Close()

	src, err := s.Source(0)
	if err != nil {
		return benchResult{}, err
	}

	var tail reactive.Handle
	cells := 1
	switch shape {
	case "chain":
		tail = src
		for i := 0; i < depth; i++ {
			tail = deriveAdd(s, tail, 1)
			cells++
		}
	case "diamond":
		tail = src
		for i := 0; i < depth/2; i++ {
			left := deriveAdd(s, tail, 1)
			right := deriveAdd(s, tail, 2)
			tail = deriveSum(s, left, right)
			cells += 3
		}
	case "fanout":
		leaves := make([]reactive.Handle, width)
		for i := range leaves {
			leaves[i] = deriveAdd(s, src, i)
			cells++
		}
		tail = leaves[len(leaves)-1]
	default:
		return benchResult{}, fmt.Errorf("unknown shape %q", shape)
	}

	// Settle once so the benchmark measures steady-state propagation.
	if _, err := s.Read(tail); err != nil {
		return benchResult{}, err
	}

	start := time.Now()
	for i := 1; i <= writes; i++ {
		if err := s.Write(src, i); err != nil {
			return benchResult{}, err
		}
		if _, err := s.Read(tail); err != nil {
			return benchResult{}, err
		}
	}
	elapsed := time.Since(start)

	return benchResult{
		shape:    shape,
		cells:    cells,
		writes:   writes,
		elapsed:  elapsed,
		perWrite: elapsed / time.Duration(writes),
	}, nil
}

func deriveAdd(s *reactive.Store, in reactive.Handle, n int) reactive.Handle {
	h, err := s.Derive(func() (any, error) {
		v, err := s.Read(in)
		if err != nil {
			return nil, err
		}
		return v.(int) + n, nil
	})
	if err != nil {
		panic(err)
	}
	return h
}

func deriveSum(s *reactive.Store, a, b reactive.Handle) reactive.Handle {
	h, err := s.Derive(func() (any, error) {
		av, err := s.Read(a)
		if err != nil {
			return nil, err
		}
		bv, err := s.Read(b)
		if err != nil {
			return nil, err
		}
		return av.(int) + bv.(int), nil
	})
	if err != nil {
		panic(err)
	}
	return h
}
