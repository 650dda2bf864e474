package main

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/Noofbiz/contactPoint/datasets"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// columnStat summarizes one output column of a split.
type columnStat struct {
	Mean float64
	Std  float64
}

// outputStats computes the mean and standard deviation of every contact
// location column of ds. Empty datasets report NaN.
func outputStats(ds datasets.Dataset) ([datasets.OutputDim]columnStat, error) {
	var res [datasets.OutputDim]columnStat
	cols := make([][]float64, datasets.OutputDim)
	for i := range cols {
		cols[i] = make([]float64, 0, ds.Len())
	}
	for i := range ds.Len() {
		_, out, err := ds.Example(i)
		if err != nil {
			return res, err
		}
		for j, v := range out {
			cols[j] = append(cols[j], float64(v))
		}
	}
	for j, xs := range cols {
		if len(xs) == 0 {
			res[j] = columnStat{Mean: math.NaN(), Std: math.NaN()}
			continue
		}
		mean, std := stat.MeanStdDev(xs, nil)
		if len(xs) == 1 {
			std = 0
		}
		res[j] = columnStat{Mean: mean, Std: std}
	}
	return res, nil
}

// contactXYs projects the contact locations of ds onto the x/y plane.
func contactXYs(ds datasets.Dataset) (plotter.XYs, error) {
	xys := make(plotter.XYs, ds.Len())
	for i := range ds.Len() {
		_, out, err := ds.Example(i)
		if err != nil {
			return nil, err
		}
		xys[i].X = float64(out[0])
		xys[i].Y = float64(out[1])
	}
	return xys, nil
}

var splitColors = map[string]color.RGBA{
	"train": {R: 120, G: 120, B: 120, A: 180},
	"val":   {R: 20, G: 80, B: 200, A: 220},
	"test":  {R: 200, G: 30, B: 30, A: 180},
}

// plotContacts writes a PNG scatter plot of the x/y contact location of every
// sample, coloured by split.
func plotContacts(outPath string, splits []namedSplit) error {
	p := plot.New()
	p.Title.Text = "Contact locations: train (grey), val (blue), test (red)"
	p.X.Label.Text = "x"
	p.Y.Label.Text = "y"

	var all plotter.XYs
	for _, s := range splits {
		xys, err := contactXYs(s.ds)
		if err != nil {
			return fmt.Errorf("%s split: %w", s.name, err)
		}
		if len(xys) == 0 {
			continue
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return err
		}
		if c, ok := splitColors[s.name]; ok {
			sc.GlyphStyle.Color = c
		}
		sc.GlyphStyle.Radius = vg.Points(1.8)
		p.Add(sc)
		p.Legend.Add(s.name, sc)
		all = append(all, xys...)
	}

	p.Add(plotter.NewGrid())
	p.X.Min, p.X.Max, p.Y.Min, p.Y.Max = autoRange(all)

	if err := ensureDir(filepath.Dir(outPath)); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 6*vg.Inch, outPath)
}

// autoRange computes padded min/max for X and Y for a set of points.
func autoRange(xs plotter.XYs) (xmin, xmax, ymin, ymax float64) {
	if len(xs) == 0 {
		return -1, 1, -1, 1
	}
	xmin, xmax = math.Inf(1), math.Inf(-1)
	ymin, ymax = math.Inf(1), math.Inf(-1)
	for _, p := range xs {
		xmin = math.Min(xmin, p.X)
		xmax = math.Max(xmax, p.X)
		ymin = math.Min(ymin, p.Y)
		ymax = math.Max(ymax, p.Y)
	}
	padx := (xmax - xmin) * 0.06
	pady := (ymax - ymin) * 0.06
	if padx == 0 {
		padx = 1.0
	}
	if pady == 0 {
		pady = 1.0
	}
	return xmin - padx, xmax + padx, ymin - pady, ymax + pady
}

func ensureDir(path string) error {
	if path == "" || path == "." {
		return nil
	}
	return os.MkdirAll(path, 0755)
}
