// Package mysql 提供数据访问层的初始化
// 负责建立 MySQL 连接、自动迁移表结构、初始化 Repository 层
package mysql

import (
	"fmt"
	"time"

	"chat_relay_server/internal/config"
	"chat_relay_server/internal/dao/mysql/repository"
	"chat_relay_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// DSN 构建 MySQL 连接字符串
// 格式：user:password@tcp(host:port)/database?params
func DSN(conf *config.MysqlConfig) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		conf.User,
		conf.Password,
		conf.Host,
		conf.Port,
		conf.DatabaseName,
	)
}

// Init 初始化数据库连接并返回 Repository 层实例
// 执行步骤：
//  1. 构建 DSN 并使用 GORM 建立连接
//  2. 设置连接池
//  3. AutoMigrate 聊天消息与定时投递相关表
func Init(conf *config.MysqlConfig) (*repository.Repositories, error) {
	db, err := gorm.Open(mysqldriver.Open(DSN(conf)), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 不会删除已有字段或数据
	err = db.AutoMigrate(
		&model.ChatMessage{},
		&model.ScheduledDispatch{},
		&model.ScheduledDispatchRecipient{},
	)
	if err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	zap.L().Info("mysql connected",
		zap.String("host", conf.Host), zap.Int("port", conf.Port), zap.String("db", conf.DatabaseName))
	return repository.NewRepositories(db), nil
}
