package cstore

import (
	"encoding/json"
	"fmt"

	"github.com/ValentinKolb/dCap/cmd/util"
	"github.com/ValentinKolb/dCap/lib/db"
	"github.com/spf13/cobra"
)

var (
	insertCmd = &cobra.Command{
		Use:   "insert [payload...]",
		Short: "Appends records, multiple payloads are inserted as one unit of work",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				id, err := rpcStore.Insert([]byte(args[0]))
				if err != nil {
					return err
				}
				fmt.Printf("inserted id=%d\n", id)
				return nil
			}

			payloads := make([][]byte, len(args))
			for i, arg := range args {
				payloads[i] = []byte(arg)
			}
			ids, err := rpcStore.InsertMany(payloads)
			if err != nil {
				return err
			}
			fmt.Printf("inserted ids=%v\n", ids)
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Reads the record with the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			value, ok, err := rpcStore.Get(id)
			if err != nil {
				return err
			}
			fmt.Printf("id=%d, found=%v, value=%s\n", id, ok, value)
			return nil
		},
	}
	delCmd = &cobra.Command{
		Use:   "del [id]",
		Short: "Deletes a record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			if err := rpcStore.Delete(id); err != nil {
				return err
			}
			fmt.Println("delete successfully")
			return nil
		},
	}
	scanCmd = &cobra.Command{
		Use:   "scan",
		Short: "Lists visible records in id order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := util.ParseRecordID(scanStart)
			if err != nil {
				return err
			}
			dir := db.Forward
			if scanBackward {
				dir = db.Backward
			}
			records, err := rpcStore.Scan(start, dir, scanLimit)
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("%d\t%s\n", rec.ID, rec.Data)
			}
			fmt.Printf("(%d records)\n", len(records))
			return nil
		},
	}
	truncateCmd = &cobra.Command{
		Use:   "truncate [id]",
		Short: "Deletes all records after the given id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			if err := rpcStore.TruncateAfter(id, truncateInclusive); err != nil {
				return err
			}
			fmt.Println("truncate successfully")
			return nil
		},
	}
	oplogStartCmd = &cobra.Command{
		Use:   "oplog-start [id]",
		Short: "Finds the highest visible id at or before the given id (e.g. 1700000000:1)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.ParseRecordID(args[0])
			if err != nil {
				return err
			}
			bound, err := rpcStore.FindLowerBoundBefore(id)
			if err != nil {
				return err
			}
			if bound == db.InvalidID {
				fmt.Println("no visible record found")
				return nil
			}
			fmt.Printf("start id=%d\n", bound)
			return nil
		},
	}
	statsCmd = &cobra.Command{
		Use:   "stats",
		Short: "Prints capacity and size information of the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			stats, err := rpcStore.Stats()
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(stats, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	scanStart         string
	scanLimit         int
	scanBackward      bool
	truncateInclusive bool
)

func init() {
	scanCmd.Flags().StringVar(&scanStart, "start", "null", util.WrapString("Id to start at (null = from the oldest record, or the newest with --backward)"))
	scanCmd.Flags().IntVar(&scanLimit, "limit", 20, util.WrapString("Maximum number of records to print (0 = all)"))
	scanCmd.Flags().BoolVar(&scanBackward, "backward", false, util.WrapString("Scan from the newest to the oldest record"))
	truncateCmd.Flags().BoolVar(&truncateInclusive, "inclusive", false, util.WrapString("Delete the given id as well"))
}
