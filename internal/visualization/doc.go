// Package visualization renders the charts embedded in a budget report.
//
// A Producer writes one PNG per non-empty dataset section into a directory:
// a revenue pie chart, an expenditure bar chart and scatter plots of GDP
// growth and inflation. File names carry a random suffix so repeated runs
// into the same directory never collide.
package visualization
